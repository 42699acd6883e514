package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EventTypeAttribute is the message attribute subscribers filter on.
const EventTypeAttribute = "event_type"

// SNSPublisher publishes domain events to a topic.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn, eventType string, message []byte) error
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes JSON events with an event_type attribute so topic
// subscriptions can use filter policies.
type SNSClient struct {
	client snsAPI
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

func (s *SNSClient) Publish(ctx context.Context, topicArn, eventType string, message []byte) error {
	if topicArn == "" {
		return errors.New("empty topicArn")
	}

	input := &sns.PublishInput{
		TopicArn: sdkaws.String(topicArn),
		Message:  sdkaws.String(string(message)),
	}
	if eventType != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			EventTypeAttribute: {
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(eventType),
			},
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish %s to %s: %w", eventType, topicArn, err)
	}
	return nil
}
