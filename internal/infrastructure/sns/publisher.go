package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-marketplace-auth/internal/config"
	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-marketplace-auth/internal/pkg/mailtmpl"
)

// publishAPI is the slice of the SNS client the publisher needs.
type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// MailPublisher hands rendered mail to an SNS topic; a downstream subscriber
// (SES forwarder, lambda) performs the actual delivery.
type MailPublisher struct {
	client   publishAPI
	topicARN string
}

// envelope is the JSON document published to the topic.
type envelope struct {
	To       string              `json:"to"`
	Subject  string              `json:"subject"`
	Template domain.MailTemplate `json:"template"`
	HTML     string              `json:"html"`
}

func NewMailPublisher(ctx context.Context, cfg *config.Config) (*MailPublisher, error) {
	if cfg.SNSMailTopic == "" {
		return nil, fmt.Errorf("SNS_MAIL_TOPIC_ARN is required for the sns mail transport")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNSRegion))
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(cfg.AWSEndpointURL) })
	}
	return &MailPublisher{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.SNSMailTopic}, nil
}

func (p *MailPublisher) Send(ctx context.Context, msg domain.MailMessage) error {
	html, err := mailtmpl.Render(msg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope{To: msg.To, Subject: msg.Subject, Template: msg.Template, HTML: html})
	if err != nil {
		return fmt.Errorf("marshal mail envelope: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(msg.Subject),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"template": {DataType: aws.String("String"), StringValue: aws.String(string(msg.Template))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
