package memory

import (
	"context"
	"sync"
	"time"
)

// Inbox remembers processed webhook fingerprints.
type Inbox struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]time.Time)}
}

func (i *Inbox) Contains(ctx context.Context, eventID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.seen[eventID]
	return ok, nil
}

func (i *Inbox) Record(ctx context.Context, eventID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[eventID]; !ok {
		i.seen[eventID] = time.Now().UTC()
	}
	return nil
}
