package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultSQSRegion = "us-east-1"
	fifoGroupID      = "tailorings"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends tailoring jobs to an SQS queue. FIFO queues (URL ending in
// .fifo) get a message group and a deduplication id per tailoring.
type SQSClient struct {
	client   sqsSender
	queueURL string
}

// NewSQSClient constructs an SQS-backed queue client.
func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	cfg, err := LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SQSClient{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// LoadAWSConfig loads the default credential chain for region, us-east-1 if
// empty.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		region = defaultSQSRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func (s *SQSClient) fifo() bool {
	return strings.HasSuffix(s.queueURL, ".fifo")
}

// Send enqueues msg. The request id travels as a message attribute too so it
// shows in the console without decoding the body.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	}
	if msg.RequestID != "" {
		in.MessageAttributes = map[string]types.MessageAttributeValue{
			"requestId": {DataType: aws.String("String"), StringValue: aws.String(msg.RequestID)},
		}
	}
	if s.fifo() {
		in.MessageGroupId = aws.String(fifoGroupID)
		in.MessageDeduplicationId = aws.String(msg.TailoringID)
	}

	if _, err := s.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
