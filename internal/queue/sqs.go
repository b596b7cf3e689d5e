package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"S3ArchiveBuilder/internal/awsconf"
	"S3ArchiveBuilder/internal/config"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQS is the Amazon SQS backend. Delete tokens are receipt handles.
type SQS struct {
	api        sqsAPI
	url        string
	wait       time.Duration
	visibility time.Duration
}

func NewSQS(ctx context.Context, cfg *config.QueueConfig) (*SQS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sqs: queue url: %w", config.ErrMissingField)
	}
	awsCfg, err := awsconf.Load(ctx, awsconf.Options{
		Region:    cfg.Region,
		Auth:      cfg.Auth,
		Profile:   cfg.Profile,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	endpoint, err := awsconf.NormalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("sqs %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newSQS(client, cfg), nil
}

func newSQS(api sqsAPI, cfg *config.QueueConfig) *SQS {
	return &SQS{
		api:        api,
		url:        cfg.URL,
		wait:       cfg.ReceiveWait,
		visibility: cfg.VisibilityTimeout,
	}
}

func (q *SQS) Send(ctx context.Context, body string) error {
	_, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

func (q *SQS) Receive(ctx context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(q.wait / time.Second),
	}
	if q.visibility > 0 {
		in.VisibilityTimeout = int32(q.visibility / time.Second)
	}
	out, err := q.api.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:          aws.ToString(m.MessageId),
			Body:        aws.ToString(m.Body),
			DeleteToken: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *SQS) Delete(ctx context.Context, token string) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(token),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

func (q *SQS) ApproximateDepth(ctx context.Context) (int64, error) {
	out, err := q.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("sqs attributes: %w", err)
	}
	raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if !ok {
		return 0, fmt.Errorf("sqs attributes: ApproximateNumberOfMessages missing")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sqs attributes: %w", err)
	}
	return n, nil
}

func (q *SQS) Close() error { return nil }
