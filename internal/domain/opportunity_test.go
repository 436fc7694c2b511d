package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from OpportunityStatus
		to   OpportunityStatus
		want bool
	}{
		{StatusPending, StatusQueued, true},
		{StatusQueued, StatusExecuting, true},
		{StatusExecuting, StatusSuccess, true},
		{StatusExecuting, StatusPartial, true},
		{StatusExecuting, StatusFailed, true},
		{StatusPending, StatusExpired, true},
		{StatusQueued, StatusExpired, true},
		{StatusPending, StatusCancelled, true},
		{StatusQueued, StatusCancelled, true},
		{StatusExecuting, StatusCancelled, true},

		// No skipping states.
		{StatusPending, StatusExecuting, false},
		{StatusPending, StatusSuccess, false},
		{StatusQueued, StatusSuccess, false},
		// EXECUTING is past the point of expiry.
		{StatusExecuting, StatusExpired, false},
		// Terminal states are final, including for cancellation.
		{StatusSuccess, StatusCancelled, false},
		{StatusFailed, StatusQueued, false},
		{StatusExpired, StatusQueued, false},
		{StatusCancelled, StatusExecuting, false},
		{StatusPartial, StatusExecuting, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []OpportunityStatus{StatusSuccess, StatusPartial, StatusFailed, StatusExpired, StatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []OpportunityStatus{StatusPending, StatusQueued, StatusExecuting} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestStatusInFlight(t *testing.T) {
	assert.True(t, StatusQueued.InFlight())
	assert.True(t, StatusExecuting.InFlight())
	assert.False(t, StatusPending.InFlight())
	assert.False(t, StatusSuccess.InFlight())
}

func TestOpportunityCloneIsDeep(t *testing.T) {
	queued := time.Now().UTC()
	opp := Opportunity{
		ID:       "opp-1",
		Tokens:   []TokenLeg{{TokenID: "tok-1", Status: "pending"}},
		Steps:    []ExecutionStep{{Step: 0, Action: "mint"}},
		QueuedAt: &queued,
	}

	clone := opp.Clone()
	clone.Tokens[0].Status = "filled"
	clone.Steps[0].Action = "sell"
	*clone.QueuedAt = clone.QueuedAt.Add(time.Hour)

	assert.Equal(t, "pending", opp.Tokens[0].Status)
	assert.Equal(t, "mint", opp.Steps[0].Action)
	assert.Equal(t, queued, *opp.QueuedAt)
}

func TestAppendStep(t *testing.T) {
	var opp Opportunity
	opp.AppendStep("mint", "confirmed", "0xabc", "")
	opp.AppendStep("sell_Yes", "failed", "", "rejected")

	require.Len(t, opp.Steps, 2)
	assert.Equal(t, 0, opp.Steps[0].Step)
	assert.Equal(t, 1, opp.Steps[1].Step)
	assert.Equal(t, "0xabc", opp.Steps[0].TxHash)
	assert.Equal(t, "rejected", opp.Steps[1].Error)
}

func TestOpportunityJSONRoundTrip(t *testing.T) {
	queued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opp := Opportunity{
		ID:             "opp-1",
		ConditionID:    "cond-1",
		Strategy:       StrategyArbitrageLong,
		Status:         StatusQueued,
		ExpectedProfit: 4.2,
		Tokens: []TokenLeg{
			{TokenID: "tok-yes", Outcome: "Yes", Price: 0.55, Size: 100, Status: "pending"},
			{TokenID: "tok-no", Outcome: "No", Price: 0.40, Size: 100, Status: "pending"},
		},
		Steps:     []ExecutionStep{{Step: 0, Action: "mint", TxHash: "0xabc"}},
		CreatedAt: queued.Add(-time.Minute),
		QueuedAt:  &queued,
	}

	data, err := json.Marshal(opp)
	require.NoError(t, err)

	var back Opportunity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, opp, back)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(ErrRateLimited))
	assert.True(t, Transient(fmt.Errorf("gateway: %w", ErrRateLimited)))
	assert.True(t, Transient(fmt.Errorf("place order: %w", ErrOrderRetryable)))
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.True(t, Transient(fmt.Errorf("http request: %w", context.DeadlineExceeded)))
	assert.True(t, Transient(&net.DNSError{IsTimeout: true}))
	assert.True(t, Transient(fmt.Errorf("write: %w", syscall.ECONNRESET)))

	assert.False(t, Transient(nil))
	assert.False(t, Transient(ErrNotFound))
	assert.False(t, Transient(errors.New("boom")))
	// Deliberate cancellation must not trigger a retry.
	assert.False(t, Transient(context.Canceled))
}

func TestStrategyTypeValid(t *testing.T) {
	for _, st := range StrategyTypes {
		assert.True(t, st.Valid())
	}
	assert.False(t, StrategyType("SNIPING").Valid())
}
