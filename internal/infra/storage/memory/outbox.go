package memory

import (
	"context"
	"time"

	appoutbox "staysettle/internal/app/outbox"
	infraoutbox "staysettle/internal/infra/outbox"
)

type outboxWriter struct{ u *Unit }

func (w outboxWriter) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := w.u.writable(); err != nil {
		return err
	}
	s := w.u.store
	s.outbox[record.ID] = &outboxRow{record: record, state: infraoutbox.StateNew, nextAttempt: s.now()}
	s.outboxOrder = append(s.outboxOrder, record.ID)
	order := len(s.outboxOrder) - 1
	w.u.undo = append(w.u.undo, func() {
		delete(s.outbox, record.ID)
		s.outboxOrder = s.outboxOrder[:order]
	})
	return nil
}

// Claim hands the oldest due record to the relay worker.
func (s *Store) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, id := range s.outboxOrder {
		row := s.outbox[id]
		if row == nil || row.state == infraoutbox.StateSent || row.state == infraoutbox.StateClaimed {
			continue
		}
		if row.nextAttempt.After(now) {
			continue
		}
		row.state = infraoutbox.StateClaimed
		return &infraoutbox.Message{
			ID:         row.record.ID,
			Name:       row.record.Name,
			Payload:    row.record.Payload,
			OccurredAt: row.record.OccurredAt,
			Aggregate:  row.record.Aggregate,
			Headers:    row.record.Headers,
			Attempts:   row.attempts,
		}, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.outbox[id]; row != nil {
		row.state = infraoutbox.StateSent
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.outbox[id]; row != nil {
		row.state = infraoutbox.StateFailed
		row.attempts++
		row.nextAttempt = next
		row.lastError = errMsg
	}
	return nil
}

// OutboxRecords returns committed records in insertion order.
func (s *Store) OutboxRecords() []appoutbox.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		out = append(out, s.outbox[id].record)
	}
	return out
}

var _ infraoutbox.Source = (*Store)(nil)
