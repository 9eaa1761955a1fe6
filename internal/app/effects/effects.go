// Package effects runs best-effort work after a unit of work commits.
package effects

import (
	"context"
	"log/slog"

	"staysettle/internal/app/policies"
)

// Effect is a named side effect whose failure never undoes committed state.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

type Runner struct {
	Logger  *slog.Logger
	Metrics policies.Metrics
}

// Run executes effects in order, detached from the caller's cancellation.
// Failures are logged and counted.
func (r Runner) Run(ctx context.Context, effs ...Effect) {
	ctx = context.WithoutCancel(ctx)
	for _, eff := range effs {
		if eff.Run == nil {
			continue
		}
		if err := eff.Run(ctx); err != nil {
			if r.Logger != nil {
				r.Logger.Warn("side effect failed", "effect", eff.Name, "error", err)
			}
			if r.Metrics != nil {
				r.Metrics.SideEffectFailed(eff.Name)
			}
		}
	}
}

// Notify builds an effect sending one notification; a nil notifier or empty recipient is skipped.
func Notify(n policies.Notifier, to, template string, data any) Effect {
	return Effect{Name: "notify:" + template, Run: func(ctx context.Context) error {
		if n == nil || to == "" {
			return nil
		}
		return n.Send(ctx, to, template, data)
	}}
}
