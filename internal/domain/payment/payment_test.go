package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysettle/internal/domain/shared/fault"
	"staysettle/internal/domain/shared/money"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func TestPaymentHappyPath(t *testing.T) {
	p := New("pay-1", "b-1", "guest-1", money.Must(38000, "NGN"), now)
	assert.True(t, p.Deletable())
	require.NoError(t, p.StartProcessing("ref-1", "card", now))
	assert.ErrorIs(t, p.StartProcessing("ref-2", "card", now), fault.ErrInvalidTransition)

	changed, err := p.MarkPaid("", []byte(`{"status":"success"}`), now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "ref-1", p.Reference)
	assert.True(t, p.Settled())
	assert.False(t, p.Deletable())

	changed, err = p.MarkPaid("ref-1", nil, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, p.Drain(), 1)
}

func TestPaymentFailureAndRefund(t *testing.T) {
	p := New("pay-1", "b-1", "guest-1", money.Must(38000, "NGN"), now)
	_, err := p.MarkRefunded(100, now)
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	changed, err := p.MarkFailed("declined", nil, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, p.Deletable())
	changed, err = p.MarkPaid("ref", nil, now)
	require.NoError(t, err)
	assert.True(t, changed, "a charge settled after a failure report is still captured")
	assert.Equal(t, StatusPaid, p.Status)
	assert.Empty(t, p.FailureReason)

	paid := New("pay-2", "b-2", "guest-1", money.Must(38000, "NGN"), now)
	_, err = paid.MarkPaid("ref-2", nil, now)
	require.NoError(t, err)
	changed, err = paid.MarkRefunded(19000, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(19000), paid.RefundedAmount)
	changed, err = paid.MarkRefunded(19000, now)
	require.NoError(t, err)
	assert.False(t, changed)
	_, err = paid.MarkPaid("ref-3", nil, now)
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}
