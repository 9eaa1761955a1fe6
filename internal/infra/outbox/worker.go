package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

type PublishCounter interface {
	OutboxPublished(n int)
}

// Worker relays outbox records to the broker as CloudEvents, one topic per
// event family ("booking.confirmed" goes to "booking.events.v1").
type Worker struct {
	Source      Source
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	SourceURI   string
	ID          string
	Backoff     []time.Duration
	BatchSize   int
	Logger      *slog.Logger
	Metrics     PublishCounter
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Source == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && w.Logger != nil {
				w.Logger.Error("outbox relay failed", "error", err)
			}
		}
	}
}

// Drain relays up to one batch of due records and reports how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !ok {
			break
		}
		sent++
	}
	if sent > 0 && w.Metrics != nil {
		w.Metrics.OutboxPublished(sent)
	}
	return sent, nil
}

// processOnce reports false when nothing was due or the publish failed.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	msg, err := w.Source.Claim(ctx, w.workerID())
	if err != nil || msg == nil {
		return false, err
	}
	topic := w.topicFor(msg.Name)
	payload, headers, err := w.formatPayload(msg)
	if err != nil {
		return false, w.Source.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), err.Error())
	}
	if err := w.Producer.Publish(ctx, topic, msg.Aggregate, payload, headers); err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", "event", msg.Name, "id", msg.ID, "attempts", msg.Attempts+1, "error", err)
		}
		return false, w.Source.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), err.Error())
	}
	return true, w.Source.MarkSent(ctx, msg.ID)
}

func (w *Worker) formatPayload(msg *Message) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              msg.ID,
		"type":            msg.Name + ".v1",
		"source":          w.source(),
		"subject":         msg.Aggregate,
		"time":            msg.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := msg.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      msg.Name + ".v1",
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return w.ID
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.SourceURI != "" {
		return w.SourceURI
	}
	return "app://staysettle"
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
