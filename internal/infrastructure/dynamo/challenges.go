package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-marketplace-auth/internal/domain"
)

// challengeAPI is the slice of the DynamoDB client the challenge repo needs.
type challengeAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ChallengeRepo stores OTP challenges keyed by (email, purpose).
// Put replaces any prior challenge for the same key, so the last issued code
// is the only one that can ever validate.
type ChallengeRepo struct {
	client    challengeAPI
	tableName string
}

func NewChallengeRepo(client challengeAPI, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName}
}

func (r *ChallengeRepo) Put(ctx context.Context, c *domain.Challenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Get returns the current challenge or ErrNotFound.
func (r *ChallengeRepo) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey("email", email, "purpose", string(purpose)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.Challenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Consume deletes the challenge only if it is still the one identified by
// challengeID. It reports false when another caller consumed it first or a
// newer challenge replaced it.
func (r *ChallengeRepo) Consume(ctx context.Context, email string, purpose domain.Purpose, challengeID string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "purpose", string(purpose)),
		ConditionExpression: aws.String("#cid = :cid"),
		ExpressionAttributeNames: map[string]string{
			"#cid": fieldChallengeID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: challengeID},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordFailure adds one wrong attempt, conditioned on challengeID, and
// consumes the challenge once maxAttempts is reached. It returns the new
// count, or 0 when the challenge is gone or was replaced.
func (r *ChallengeRepo) RecordFailure(ctx context.Context, email string, purpose domain.Purpose, challengeID string, maxAttempts int) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "purpose", string(purpose)),
		UpdateExpression:    aws.String("ADD #att :one"),
		ConditionExpression: aws.String("#cid = :cid"),
		ExpressionAttributeNames: map[string]string{
			"#att": fieldAttempts,
			"#cid": fieldChallengeID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":cid": &types.AttributeValueMemberS{Value: challengeID},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("record challenge failure: %w", err)
	}
	attr, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("record challenge failure: missing %s in response", fieldAttempts)
	}
	n, err := strconv.Atoi(attr.Value)
	if err != nil {
		return 0, fmt.Errorf("decode challenge attempts: %w", err)
	}
	if n >= maxAttempts {
		if _, err := r.Consume(ctx, email, purpose, challengeID); err != nil {
			return n, fmt.Errorf("drop exhausted challenge: %w", err)
		}
	}
	return n, nil
}
