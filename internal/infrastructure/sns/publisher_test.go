package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-marketplace-auth/internal/domain"
)

type mockPublishAPI struct{ mock.Mock }

func (m *mockPublishAPI) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func linkMessage() domain.MailMessage {
	return domain.MailMessage{
		To:       "a@x.com",
		Subject:  "Reset your password",
		Template: domain.TemplateActionLink,
		Payload:  domain.ActionLinkPayload{Description: "Click to reset", URL: "https://x/reset-password?token=t"},
	}
}

func TestSend_PublishesRenderedEnvelope(t *testing.T) {
	api := new(mockPublishAPI)
	p := &MailPublisher{client: api, topicARN: "arn:aws:sns:us-east-1:000000000000:mail"}

	var got *sns.PublishInput
	api.On("Publish", mock.Anything, mock.AnythingOfType("*sns.PublishInput")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{}, nil)

	require.NoError(t, p.Send(context.Background(), linkMessage()))
	api.AssertExpectations(t)

	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:mail", *got.TopicArn)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(*got.Message), &env))
	assert.Equal(t, "a@x.com", env.To)
	assert.Equal(t, domain.TemplateActionLink, env.Template)
	assert.Contains(t, env.HTML, "token=t")
}

func TestSend_PublishFailure(t *testing.T) {
	api := new(mockPublishAPI)
	p := &MailPublisher{client: api, topicARN: "arn"}
	api.On("Publish", mock.Anything, mock.Anything).Return((*sns.PublishOutput)(nil), errors.New("throttled"))

	assert.ErrorContains(t, p.Send(context.Background(), linkMessage()), "throttled")
}

func TestSend_BadPayloadSkipsPublish(t *testing.T) {
	api := new(mockPublishAPI)
	p := &MailPublisher{client: api, topicARN: "arn"}
	msg := linkMessage()
	msg.Payload = "not a payload"

	assert.Error(t, p.Send(context.Background(), msg))
	api.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
