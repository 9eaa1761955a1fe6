package main

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"staysettle/internal/infra/broker/kafka"
)

const webhookTopic = "payments.webhooks.v1"

type runner struct {
	name string
	run  func(ctx context.Context) error
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the outbox relay, delayed job worker, earnings promoter and webhook relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeContainer(c)
			if c.inMemory {
				c.logger.Warn("worker started without MONGO_URI; it only sees its own in-memory state")
			}

			runners := c.backgroundRunners()
			if len(c.cfg.KafkaBrokers) > 0 {
				consumer, err := kafka.NewConsumer(c.cfg.KafkaBrokers, "staysettle-webhooks", nil, kafka.WebhookRelay{Payments: c.payments}, c.logger)
				if err != nil {
					return err
				}
				defer consumer.Close()
				topic := c.cfg.KafkaTopicPrefix + webhookTopic
				runners = append(runners, runner{name: "webhook-relay", run: func(ctx context.Context) error {
					return consumer.Run(ctx, []string{topic})
				}})
			}
			return runAll(cmd.Context(), c, runners)
		},
	}
}

func (c *container) backgroundRunners() []runner {
	return []runner{
		{name: "outbox", run: c.outboxWorker.Run},
		{name: "jobs", run: c.jobWorker.Run},
		{name: "promoter", run: c.promoter.Run},
	}
}

// runAll runs every runner until ctx ends or one of them fails, then stops
// the rest and waits for them.
func runAll(ctx context.Context, c *container, runners []runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, r := range runners {
		wg.Add(1)
		go func(r runner) {
			defer wg.Done()
			c.logger.Info("runner started", "runner", r.name)
			err := r.run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("runner failed", "runner", r.name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			cancel()
		}(r)
	}
	wg.Wait()
	return errors.Join(errs...)
}
