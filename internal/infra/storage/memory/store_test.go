package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staysettle/internal/app/outbox"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/property"
	"staysettle/internal/domain/shared/money"
	"staysettle/internal/infra/storage/memory"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newProperty(t *testing.T, id string) *property.Property {
	t.Helper()
	p, err := property.New(property.CreateParams{
		ID:      property.PropertyID(id),
		Host:    "host-1",
		Title:   id,
		Pricing: property.Pricing{Nightly: money.Must(10000, "NGN"), MaxGuests: 2},
		Now:     now,
	})
	require.NoError(t, err)
	return p
}

func save(ctx context.Context, store *memory.Store, p *property.Property) error {
	return uow.Run(ctx, store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Properties().Save(ctx, p)
	})
}

func load(t *testing.T, store *memory.Store, id string) (*property.Property, error) {
	t.Helper()
	var p *property.Property
	err := uow.Run(context.Background(), store, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		p, err = unit.Properties().ByID(ctx, property.PropertyID(id))
		return err
	})
	return p, err
}

func TestFailedUnitRollsBack(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := uow.Run(ctx, store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Properties().Save(ctx, newProperty(t, "prop-1")); err != nil {
			return err
		}
		if err := unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "property.created"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = load(t, store, "prop-1")
	assert.ErrorIs(t, err, property.ErrPropertyNotFound)
	assert.Empty(t, store.OutboxRecords())
}

func TestCommittedWritesAreCopies(t *testing.T) {
	store := memory.NewStore()
	p := newProperty(t, "prop-1")
	require.NoError(t, save(context.Background(), store, p))
	assert.Equal(t, int64(1), p.Version)

	p.Title = "changed outside a unit"
	got, err := load(t, store, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "prop-1", got.Title)
	assert.Equal(t, int64(1), got.Version)
}

func TestStaleSaveIsTransient(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, save(ctx, store, newProperty(t, "prop-1")))

	first, err := load(t, store, "prop-1")
	require.NoError(t, err)
	second, err := load(t, store, "prop-1")
	require.NoError(t, err)

	first.Title = "first"
	require.NoError(t, save(ctx, store, first))

	second.Title = "second"
	err = uow.Run(ctx, store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Properties().Save(ctx, second)
	})
	assert.ErrorIs(t, err, uow.ErrTransient)

	got, err := load(t, store, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	fresh := newProperty(t, "prop-2")
	fresh.Version = 3
	assert.ErrorIs(t, save(ctx, store, fresh), uow.ErrTransient)
}

func TestRunRetriesTransientUnits(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, save(ctx, store, newProperty(t, "prop-1")))

	calls := 0
	err := uow.Run(ctx, store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		calls++
		p, err := unit.Properties().ByID(ctx, "prop-1")
		if err != nil {
			return err
		}
		if calls == 1 {
			p.Version = 99
		}
		p.Title = "retried"
		return unit.Properties().Save(ctx, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	got, err := load(t, store, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "retried", got.Title)
	assert.Equal(t, int64(2), got.Version)
}

func TestReadOnlyUnitRefusesWrites(t *testing.T) {
	store := memory.NewStore()
	err := uow.Run(context.Background(), store, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Properties().Save(ctx, newProperty(t, "prop-1"))
	})
	assert.ErrorIs(t, err, memory.ErrReadOnly)
}

func TestNestedRunJoinsOuterUnit(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := uow.Run(ctx, store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := save(ctx, store, newProperty(t, "prop-1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = load(t, store, "prop-1")
	assert.ErrorIs(t, err, property.ErrPropertyNotFound)
}

func TestBeginHonoursCancelledContext(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Begin(ctx, uow.TxOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
