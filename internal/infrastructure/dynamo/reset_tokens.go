package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-marketplace-auth/internal/domain"
)

// ResetTokenRepo stores hashed password reset tokens.
type ResetTokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewResetTokenRepo(client *dynamodb.Client, tableName string) *ResetTokenRepo {
	return &ResetTokenRepo{client: client, tableName: tableName}
}

func (r *ResetTokenRepo) Put(ctx context.Context, t *domain.ResetToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal reset token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Consume atomically deletes the token and returns what was stored.
// A token that was never stored, or already used, yields ErrNotFound.
func (r *ResetTokenRepo) Consume(ctx context.Context, tokenHash string) (*domain.ResetToken, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("token_hash", tokenHash),
		ConditionExpression: aws.String("attribute_exists(token_hash)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("reset token not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var t domain.ResetToken
	if err := attributevalue.UnmarshalMap(out.Attributes, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
