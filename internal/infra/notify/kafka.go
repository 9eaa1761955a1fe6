// Package notify delivers notifications by publishing them for the
// notification service to render and send.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staysettle/internal/app/policies"
	infraoutbox "staysettle/internal/infra/outbox"
)

const DefaultTopic = "notifications.v1"

type message struct {
	ID       string    `json:"id"`
	To       string    `json:"to"`
	Template string    `json:"template"`
	Data     any       `json:"data"`
	At       time.Time `json:"at"`
}

// KafkaNotifier publishes one record per notification keyed by recipient.
type KafkaNotifier struct {
	Producer infraoutbox.Producer
	Topic    string
	Timeout  time.Duration
}

func (n KafkaNotifier) Send(ctx context.Context, to string, template string, data any) error {
	payload, err := json.Marshal(message{ID: uuid.NewString(), To: to, Template: template, Data: data, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	topic := n.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	return n.Producer.Publish(ctx, topic, to, payload, map[string]string{"template": template})
}

// LogNotifier writes notifications to the log; used when no broker is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to string, template string, data any) error {
	if n.Logger != nil {
		n.Logger.InfoContext(ctx, "notification", "to", to, "template", template, "data", data)
	}
	return nil
}

var (
	_ policies.Notifier = KafkaNotifier{}
	_ policies.Notifier = LogNotifier{}
)
