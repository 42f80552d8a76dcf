package biz

import (
	"testing"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{"pending process", StatusPending, EventProcess, StatusProcessing, false},
		{"pending succeed", StatusPending, EventSucceed, StatusSucceeded, false},
		{"pending fail", StatusPending, EventFail, StatusFailed, false},
		{"processing succeed", StatusProcessing, EventSucceed, StatusSucceeded, false},
		{"processing fail", StatusProcessing, EventFail, StatusFailed, false},
		{"succeeded refund", StatusSucceeded, EventRefund, StatusRefunded, false},
		{"failed retry", StatusFailed, EventRetry, StatusPending, false},

		{"pending refund", StatusPending, EventRefund, "", true},
		{"pending retry", StatusPending, EventRetry, "", true},
		{"processing process", StatusProcessing, EventProcess, "", true},
		{"processing refund", StatusProcessing, EventRefund, "", true},
		{"succeeded succeed", StatusSucceeded, EventSucceed, "", true},
		{"succeeded fail", StatusSucceeded, EventFail, "", true},
		{"succeeded retry", StatusSucceeded, EventRetry, "", true},
		{"failed succeed", StatusFailed, EventSucceed, "", true},
		{"failed fail", StatusFailed, EventFail, "", true},
		{"failed refund", StatusFailed, EventRefund, "", true},
		{"refunded anything", StatusRefunded, EventSucceed, "", true},
		{"refunded refund", StatusRefunded, EventRefund, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStatus(tt.from, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidTransition(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_IllegalTransitionLeavesStatusUnchanged(t *testing.T) {
	tx := &Transaction{ID: "tx-1", Status: StatusSucceeded}

	err := tx.Apply(EventFail)

	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
	assert.Equal(t, StatusSucceeded, tx.Status)
}

func TestApply_AdvancesStatus(t *testing.T) {
	tx := &Transaction{ID: "tx-1", Status: StatusPending}

	require.NoError(t, tx.Apply(EventProcess))
	assert.Equal(t, StatusProcessing, tx.Status)

	require.NoError(t, tx.Apply(EventSucceed))
	assert.Equal(t, StatusSucceeded, tx.Status)
}

func TestApplyRefund(t *testing.T) {
	newTx := func() *Transaction {
		return &Transaction{
			ID:          "tx-1",
			Status:      StatusSucceeded,
			GrossAmount: decimal.NewFromInt(10000),
			FeeAmount:   decimal.NewFromInt(250),
			NetAmount:   decimal.NewFromInt(9750),
		}
	}

	t.Run("full net refund", func(t *testing.T) {
		tx := newTx()
		require.NoError(t, tx.ApplyRefund(decimal.NewFromInt(9750)))
		assert.Equal(t, StatusRefunded, tx.Status)
	})

	t.Run("exceeds net", func(t *testing.T) {
		tx := newTx()
		err := tx.ApplyRefund(decimal.NewFromInt(9751))
		require.Error(t, err)
		assert.True(t, errors.IsReason(err, errors.ReasonRefundExceedsNet))
		assert.Equal(t, StatusSucceeded, tx.Status)
	})

	t.Run("negative amount", func(t *testing.T) {
		tx := newTx()
		err := tx.ApplyRefund(decimal.NewFromInt(-1))
		require.Error(t, err)
		assert.Equal(t, StatusSucceeded, tx.Status)
	})

	t.Run("not refundable from failed", func(t *testing.T) {
		tx := newTx()
		tx.Status = StatusFailed
		err := tx.ApplyRefund(decimal.NewFromInt(100))
		require.Error(t, err)
		assert.True(t, errors.IsInvalidTransition(err))
		assert.Equal(t, StatusFailed, tx.Status)
	})
}

func TestCheckAmounts(t *testing.T) {
	tx := &Transaction{
		GrossAmount: decimal.NewFromInt(10000),
		FeeAmount:   decimal.NewFromInt(250),
		NetAmount:   decimal.NewFromInt(9750),
	}
	require.NoError(t, tx.CheckAmounts())

	tx.NetAmount = decimal.NewFromInt(9751)
	require.Error(t, tx.CheckAmounts())

	tx.FeeAmount = decimal.NewFromInt(-1)
	tx.NetAmount = decimal.NewFromInt(10001)
	require.Error(t, tx.CheckAmounts())
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
}

func TestCheckoutSessionActive(t *testing.T) {
	now := time.Now().UTC()
	s := &CheckoutSession{Status: SessionCreated, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.Active(now))

	s.Status = SessionRedirected
	assert.True(t, s.Active(now))

	s.Status = SessionCompleted
	assert.False(t, s.Active(now))

	s.Status = SessionExpired
	assert.False(t, s.Active(now))

	s.Status = SessionCreated
	s.ExpiresAt = now.Add(-time.Minute)
	assert.False(t, s.Active(now))
}
