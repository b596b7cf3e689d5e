package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"S3ArchiveBuilder/internal/config"
)

type fakeSQS struct {
	sent     []string
	deleted  []string
	receive  *sqs.ReceiveMessageInput
	messages []types.Message
	depth    string
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receive = in
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, f.err
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	attrs := map[string]string{}
	if f.depth != "" {
		attrs["ApproximateNumberOfMessages"] = f.depth
	}
	return &sqs.GetQueueAttributesOutput{Attributes: attrs}, nil
}

func TestSQS_SendReceiveDelete(t *testing.T) {
	api := &fakeSQS{
		messages: []types.Message{{MessageId: aws.String("m1"), Body: aws.String(`{"prefix":"a"}`), ReceiptHandle: aws.String("rh-1")}},
	}
	q := newSQS(api, &config.QueueConfig{URL: "https://sqs.example/q", ReceiveWait: 2 * time.Second, VisibilityTimeout: time.Minute})
	ctx := context.Background()

	if err := q.Send(ctx, "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(api.sent) != 1 || api.sent[0] != "body" {
		t.Errorf("sent = %v", api.sent)
	}

	msgs, err := q.Receive(ctx, 1)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].DeleteToken != "rh-1" || msgs[0].ID != "m1" {
		t.Fatalf("msgs = %+v", msgs)
	}
	if api.receive.MaxNumberOfMessages != 1 || api.receive.WaitTimeSeconds != 2 || api.receive.VisibilityTimeout != 60 {
		t.Errorf("receive input = %+v", api.receive)
	}

	if err := q.Delete(ctx, msgs[0].DeleteToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "rh-1" {
		t.Errorf("deleted = %v", api.deleted)
	}
}

func TestSQS_ApproximateDepth(t *testing.T) {
	ctx := context.Background()
	t.Run("parses attribute", func(t *testing.T) {
		q := newSQS(&fakeSQS{depth: "42"}, &config.QueueConfig{URL: "u"})
		n, err := q.ApproximateDepth(ctx)
		if err != nil || n != 42 {
			t.Errorf("depth = %d, %v", n, err)
		}
	})
	t.Run("missing attribute", func(t *testing.T) {
		q := newSQS(&fakeSQS{}, &config.QueueConfig{URL: "u"})
		if _, err := q.ApproximateDepth(ctx); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("api error", func(t *testing.T) {
		boom := errors.New("boom")
		q := newSQS(&fakeSQS{err: boom}, &config.QueueConfig{URL: "u"})
		if _, err := q.ApproximateDepth(ctx); !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), &config.QueueConfig{Backend: "kafka", URL: "x"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("err = %v, want ErrUnknownBackend", err)
	}
}
