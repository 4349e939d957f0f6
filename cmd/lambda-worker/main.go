package main

// Build the queue worker Lambda:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
//
// The event source mapping must enable ReportBatchItemFailures.

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"cv-tailor/internal/bootstrap"
	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/telemetry"
	"cv-tailor/internal/workerproc"
)

var processor = sync.OnceValues(func() (workerproc.Processor, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return app.Processor, nil
})

// settleBatch runs every record and returns the ones to redeliver.
func settleBatch(ctx context.Context, p workerproc.Processor, records []events.SQSMessage) []events.SQSBatchItemFailure {
	var failures []events.SQSBatchItemFailure
	for _, record := range records {
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"receive_count":  record.Attributes["ApproximateReceiveCount"],
		}
		if !workerproc.Settle(ctx, p, record.Body, fields) {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return failures
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	p, err := processor()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{
			"error":   err.Error(),
			"records": len(event.Records),
		})
		return events.SQSEventResponse{}, err
	}
	return events.SQSEventResponse{BatchItemFailures: settleBatch(ctx, p, event.Records)}, nil
}

func main() {
	lambda.Start(handler)
}
