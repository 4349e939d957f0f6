package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"cv-tailor/internal/queue"
)

type stubProcessor map[string]error

func (s stubProcessor) Process(ctx context.Context, id string) error {
	return s[id]
}

func record(t *testing.T, messageID, tailoringID string) events.SQSMessage {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{TailoringID: tailoringID})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return events.SQSMessage{MessageId: messageID, Body: string(body)}
}

func TestSettleBatchReportsOnlyRetryableFailures(t *testing.T) {
	p := stubProcessor{"t-down": errors.New("db unavailable")}
	records := []events.SQSMessage{
		record(t, "m-ok", "t-ok"),
		record(t, "m-retry", "t-down"),
		{MessageId: "m-garbage", Body: "{not json"},
	}

	failures := settleBatch(context.Background(), p, records)
	if len(failures) != 1 || failures[0].ItemIdentifier != "m-retry" {
		t.Fatalf("expected only m-retry to be redelivered, got %+v", failures)
	}
}

func TestSettleBatchEmpty(t *testing.T) {
	if failures := settleBatch(context.Background(), stubProcessor{}, nil); len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}
}
