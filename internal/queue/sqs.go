// Package queue publishes usage events to SQS for downstream aggregation,
// an alternative sink to writing Postgres directly from the gateway.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/mathparenting/tutor-gateway/internal/domain"
)

type SQSUsageSink struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSUsageSink(ctx context.Context, region, queueURL string) (*SQSUsageSink, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSUsageSink{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

func NewSQSUsageSinkWithConfig(cfg aws.Config, queueURL string) *SQSUsageSink {
	return &SQSUsageSink{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

func (s *SQSUsageSink) Record(ctx context.Context, record domain.UsageRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal usage record: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"intent": {
				DataType:    aws.String("String"),
				StringValue: aws.String(record.Intent),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send usage message: %w", err)
	}

	return nil
}
