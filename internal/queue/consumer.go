package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Limmita2/FaseWatch/internal/jobs"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
)

// errMalformed marks a task payload that can never be decoded.
var errMalformed = errors.New("malformed task payload")

// PhotoHandler processes one photo task; the error decides redelivery.
type PhotoHandler func(ctx context.Context, task models.PhotoTask) error

// EventHandler receives published resolution events.
type EventHandler func(ctx context.Context, ev models.ResolutionEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
	wg sync.WaitGroup
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumePhotos starts consuming photo tasks from the PHOTOS stream.
// workerCount determines how many goroutines process messages concurrently.
// Redelivery follows policy: MaxDeliver is the attempt budget and failed
// attempts are nak'ed with the policy delay or terminated.
func (c *Consumer) ConsumePhotos(ctx context.Context, consumerName string, handler PhotoHandler, workerCount int, policy jobs.RetryPolicy) error {
	stream, err := c.js.Stream(ctx, PhotosStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", PhotosStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    policy.MaxAttempts,
		FilterSubject: PhotosSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(msgCh)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch photos error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					_ = msg.Nak()
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			for msg := range msgCh {
				attempt := 1
				if meta, err := msg.Metadata(); err == nil {
					attempt = int(meta.NumDelivered)
				}
				err := runPhoto(ctx, msg.Data(), handler)
				if err != nil {
					slog.Error("process photo error", "worker", workerID, "attempt", attempt, "error", err, "subject", msg.Subject())
				}
				settle(msg, attempt, err, policy)
			}
		}(i)
	}

	slog.Info("photo consumer started", "consumer", consumerName, "workers", workerCount,
		"max_attempts", policy.MaxAttempts, "retry_delay", policy.Delay)
	return nil
}

func runPhoto(ctx context.Context, data []byte, handler PhotoHandler) error {
	var task models.PhotoTask
	if err := json.Unmarshal(data, &task); err != nil {
		return fmt.Errorf("unmarshal photo task: %w", errMalformed)
	}
	return handler(ctx, task)
}

// settler is the acknowledgement surface of a JetStream message.
type settler interface {
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// settle acknowledges a delivery according to the retry policy.
func settle(msg settler, attempt int, err error, policy jobs.RetryPolicy) {
	if err == nil {
		_ = msg.Ack()
		return
	}

	verdict, delay := policy.Next(attempt, err)
	if errors.Is(err, errMalformed) {
		verdict = jobs.Drop
	}

	switch verdict {
	case jobs.Retry:
		observability.JobsRetried.Inc()
		_ = msg.NakWithDelay(delay)
	default:
		observability.JobsFailed.WithLabelValues(verdict.String()).Inc()
		slog.Error("photo job failed permanently", "attempt", attempt, "reason", verdict.String(), "error", err)
		observability.ReportError(err, map[string]string{
			"reason":  verdict.String(),
			"attempt": fmt.Sprint(attempt),
		})
		_ = msg.Term()
	}
}

// ConsumeEvents starts consuming resolution events (for API to broadcast via WebSocket).
func (c *Consumer) ConsumeEvents(ctx context.Context, consumerName string, handler EventHandler) error {
	stream, err := c.js.Stream(ctx, EventsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", EventsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: EventsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				var ev models.ResolutionEvent
				if err := json.Unmarshal(msg.Data(), &ev); err != nil {
					slog.Warn("drop malformed event", "subject", msg.Subject(), "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, ev); err != nil {
					slog.Error("process event error", "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("event consumer started", "consumer", consumerName)
	return nil
}

// Wait blocks until every fetch loop and worker has returned. Cancel the
// context passed to the Consume calls first.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
