package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cv-tailor/internal/bootstrap"
	"cv-tailor/internal/queue"
	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/telemetry"
	"cv-tailor/internal/workerproc"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	concurrency := max(1, cfg.WorkerConcurrency)
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second

	switch cfg.QueueBackend {
	case "amqp":
		if app.Consumer == nil {
			log.Fatal("AMQP_URL is required")
		}
		defer app.Consumer.Close()
		log.Printf("worker started backend=amqp concurrency=%d", concurrency)
		err := app.Consumer.Consume(ctx, concurrency, func(ctx context.Context, body string) bool {
			return workerproc.Settle(ctx, app.Processor, body, map[string]any{"queue": "amqp"})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("consume: %v", err)
		}
	default:
		queueURL := strings.TrimSpace(cfg.SQSQueueURL)
		if queueURL == "" {
			log.Fatal("SQS_QUEUE_URL is required")
		}
		awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("load aws config: %v", err)
		}
		poller := &sqsPoller{
			client:      sqs.NewFromConfig(awsCfg),
			queueURL:    queueURL,
			visibility:  int32(cfg.SQSVisibilitySeconds),
			concurrency: concurrency,
			processor:   app.Processor,
		}
		log.Printf("worker started backend=sqs queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, cfg.SQSVisibilitySeconds)
		poller.run(ctx, shutdownTimeout)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type sqsPoller struct {
	client      sqsAPI
	queueURL    string
	visibility  int32
	concurrency int
	processor   workerproc.Processor
}

func (p *sqsPoller) run(ctx context.Context, shutdownTimeout time.Duration) {
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(p.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   p.visibility,
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight jobs finish even after shutdown is requested.
				handleMessage(context.WithoutCancel(ctx), p.client, p.queueURL, p.processor, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, processor workerproc.Processor, msg sqstypes.Message) {
	fields := baseFields(msg)
	if !workerproc.Settle(ctx, processor, aws.ToString(msg.Body), fields) {
		return
	}
	deleteMessage(ctx, client, queueURL, msg)
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.tailoring.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg)
		fields["error"] = err.Error()
		telemetry.Error("worker.tailoring.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message) map[string]any {
	return map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
