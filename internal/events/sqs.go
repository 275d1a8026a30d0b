package events

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vidshare/backend/internal/pipeline"
)

const (
	maxReceiveBatch = 10
	maxBackoff      = 30 * time.Second
)

// SQSAPI is the subset of the SQS client used by Consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// ConsumerConfig tunes one queue consumer.
type ConsumerConfig struct {
	QueueURL string
	// WaitTimeSeconds is the long-poll duration (max 20).
	WaitTimeSeconds int32
	// VisibilityTimeout overrides the queue default when positive.
	VisibilityTimeout int32
	// Concurrency bounds the messages processed at once; it is also the receive batch size (max 10).
	Concurrency int
}

// Consumer long-polls an SQS queue and runs a handler per message. A message is deleted when the
// handler succeeds or reports a malformed event; otherwise it becomes visible again after the
// visibility timeout and the queue's redrive policy decides its fate.
type Consumer struct {
	name    string
	client  SQSAPI
	cfg     ConsumerConfig
	handler MessageHandler
	logger  *zap.Logger
}

// NewConsumer creates a consumer. name labels logs.
func NewConsumer(name string, client SQSAPI, cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WaitTimeSeconds <= 0 || cfg.WaitTimeSeconds > 20 {
		cfg.WaitTimeSeconds = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Consumer{
		name:    name,
		client:  client,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(zap.String("consumer", name)),
	}
}

// Run polls until ctx is cancelled. In-flight messages of the current batch finish before it returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("sqs consumer started", zap.String("queue_url", c.cfg.QueueURL), zap.Int("concurrency", c.cfg.Concurrency))
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			c.logger.Info("sqs consumer stopping")
			return nil
		}

		n, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Warn("sqs receive failed", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		if n > 0 {
			c.logger.Debug("sqs batch processed", zap.Int("messages", n))
		}
	}
}

// poll receives one batch and processes it, returning the number of messages handled.
func (c *Consumer) poll(ctx context.Context) (int, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: int32(min(c.cfg.Concurrency, maxReceiveBatch)),
		WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
	}
	if c.cfg.VisibilityTimeout > 0 {
		in.VisibilityTimeout = c.cfg.VisibilityTimeout
	}
	out, err := c.client.ReceiveMessage(ctx, in)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for _, m := range out.Messages {
		m := m
		g.Go(func() error {
			c.process(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return len(out.Messages), nil
}

func (c *Consumer) process(ctx context.Context, m types.Message) {
	log := c.logger.With(zap.String("message_id", aws.ToString(m.MessageId)))
	err := c.handler(ctx, []byte(aws.ToString(m.Body)))
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrMalformedEvent):
		log.Warn("malformed message dropped", zap.Error(err))
	default:
		log.Error("message handling failed, leaving for redelivery", zap.Error(err))
		return
	}
	// handled messages are deleted even during shutdown
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := c.client.DeleteMessage(delCtx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		log.Error("sqs delete failed", zap.Error(err))
	}
}
