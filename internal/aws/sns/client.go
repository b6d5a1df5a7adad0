package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// Client publishes approval notifications to a single topic.
type Client struct {
	api      SNSAPI
	topicARN string
}

func NewClient(api SNSAPI, topicARN string) *Client {
	return &Client{api: api, topicARN: topicARN}
}

func (c *Client) Notify(ctx context.Context, subject, message string) error {
	if c.topicARN == "" {
		return errors.New("sns: no topic configured")
	}
	_, err := c.api.Publish(ctx, &awssns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("Publish(%s): %w", c.topicARN, err)
	}
	return nil
}
