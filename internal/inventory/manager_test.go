package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMerger struct {
	calls   int
	amounts []float64
	result  domain.TxResult
	err     error
}

func (f *fakeMerger) Merge(ctx context.Context, conditionID string, amount float64) (domain.TxResult, error) {
	f.calls++
	f.amounts = append(f.amounts, amount)
	if f.err != nil {
		return domain.TxResult{}, f.err
	}
	return f.result, nil
}

func mmParams() domain.StrategyParams {
	return domain.StrategyParams{
		AutoMerge:          true,
		MergeThreshold:     50,
		MaxPositionPerSide: 500,
		MaxOpenPosition:    800,
		MaxDailyLoss:       100,
		SkewThreshold:      0.3,
	}
}

func TestRecordFillBuyAndSell(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.50, 100))
	inv := m.Inventory("cond-1")
	assert.InDelta(t, 100, inv.YesPosition, 1e-9)
	assert.InDelta(t, 50, inv.YesCost, 1e-9)

	// Selling 40 at 0.60 realizes a 0.10 gain per unit; no loss is booked.
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideSell, 0.60, 40))
	inv = m.Inventory("cond-1")
	assert.InDelta(t, 60, inv.YesPosition, 1e-9)
	assert.InDelta(t, 30, inv.YesCost, 1e-9)
	assert.InDelta(t, 0, inv.DailyLoss, 1e-9)

	// Selling below basis books the realized loss.
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideSell, 0.40, 60))
	inv = m.Inventory("cond-1")
	assert.InDelta(t, 0, inv.YesPosition, 1e-9)
	assert.InDelta(t, 6, inv.DailyLoss, 1e-9)
}

func TestRecordFillRejectsNonPositiveSize(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	assert.Error(t, m.RecordFill(context.Background(), "cond-1", "Yes", "tok", domain.OrderSideBuy, 0.5, 0))
	assert.Error(t, m.RecordFill(context.Background(), "cond-1", "Yes", "tok", domain.OrderSideBuy, 0.5, -5))
}

func TestSellNeverGoesNegative(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	ctx := context.Background()
	require.NoError(t, m.RecordFill(ctx, "cond-1", "No", "tok-no", domain.OrderSideBuy, 0.40, 30))
	// Oversell clamps to the held size.
	require.NoError(t, m.RecordFill(ctx, "cond-1", "No", "tok-no", domain.OrderSideSell, 0.45, 100))
	inv := m.Inventory("cond-1")
	assert.InDelta(t, 0, inv.NoPosition, 1e-9)
	assert.InDelta(t, 0, inv.NoCost, 1e-9)
}

func TestCheckQuotingPositionLimits(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	ctx := context.Background()
	params := mmParams()

	assert.NoError(t, m.CheckQuoting("cond-1", domain.OrderSideBuy, "Yes", params))

	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.50, 500))
	err := m.CheckQuoting("cond-1", domain.OrderSideBuy, "Yes", params)
	assert.ErrorIs(t, err, domain.ErrPositionLimit)

	// The other side is still below its cap.
	assert.NoError(t, m.CheckQuoting("cond-1", domain.OrderSideBuy, "No", params))
	// Sells unwind positions and are never capped.
	assert.NoError(t, m.CheckQuoting("cond-1", domain.OrderSideSell, "Yes", params))
}

func TestCheckQuotingAggregateCap(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	ctx := context.Background()
	params := mmParams()

	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-1", domain.OrderSideBuy, 0.50, 400))
	require.NoError(t, m.RecordFill(ctx, "cond-2", "Yes", "tok-2", domain.OrderSideBuy, 0.50, 400))

	// 800 held across markets hits the aggregate cap even though each market
	// is under its per-side cap.
	err := m.CheckQuoting("cond-3", domain.OrderSideBuy, "Yes", params)
	assert.ErrorIs(t, err, domain.ErrPositionLimit)
}

func TestDailyLossHaltAndReset(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	ctx := context.Background()
	params := mmParams()

	// Buy at 0.60, dump at 0.10: realized loss 0.50 * 250 = 125 > 100 cap.
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.60, 250))
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideSell, 0.10, 250))

	err := m.CheckQuoting("cond-1", domain.OrderSideBuy, "Yes", params)
	assert.ErrorIs(t, err, domain.ErrQuotingHalted)
	// The halt also blocks sells; the market is fully paused.
	err = m.CheckQuoting("cond-1", domain.OrderSideSell, "Yes", params)
	assert.ErrorIs(t, err, domain.ErrQuotingHalted)
	assert.True(t, m.Inventory("cond-1").Halted)

	// Other markets keep quoting.
	assert.NoError(t, m.CheckQuoting("cond-2", domain.OrderSideBuy, "Yes", params))

	m.ResetDailyLoss()
	assert.NoError(t, m.CheckQuoting("cond-1", domain.OrderSideBuy, "Yes", params))
	assert.InDelta(t, 0, m.Inventory("cond-1").DailyLoss, 1e-9)
}

func TestMaybeMergeReducesBothSides(t *testing.T) {
	merger := &fakeMerger{result: domain.TxResult{TxHash: "0xmerge", Success: true}}
	m := NewManager(merger, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.55, 80))
	require.NoError(t, m.RecordFill(ctx, "cond-1", "No", "tok-no", domain.OrderSideBuy, 0.45, 60))

	before := m.Inventory("cond-1")
	merged, err := m.MaybeMerge(ctx, "cond-1", mmParams())
	require.NoError(t, err)
	assert.InDelta(t, 60, merged, 1e-9)
	assert.Equal(t, 1, merger.calls)

	after := m.Inventory("cond-1")
	assert.InDelta(t, 20, after.YesPosition, 1e-9)
	assert.InDelta(t, 0, after.NoPosition, 1e-9)
	// The matched amount is gone from both sides, so skew cannot grow.
	assert.LessOrEqual(t, after.Total(), before.Total())
	// Proportional cost release.
	assert.InDelta(t, 0.55*20, after.YesCost, 1e-9)
	assert.InDelta(t, 0, after.NoCost, 1e-9)
}

func TestMaybeMergeBelowThreshold(t *testing.T) {
	merger := &fakeMerger{result: domain.TxResult{Success: true}}
	m := NewManager(merger, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.55, 40))
	require.NoError(t, m.RecordFill(ctx, "cond-1", "No", "tok-no", domain.OrderSideBuy, 0.45, 40))

	merged, err := m.MaybeMerge(ctx, "cond-1", mmParams())
	require.NoError(t, err)
	assert.Zero(t, merged)
	assert.Zero(t, merger.calls)
}

func TestMaybeMergeDisabled(t *testing.T) {
	merger := &fakeMerger{result: domain.TxResult{Success: true}}
	m := NewManager(merger, nil, testLogger())
	ctx := context.Background()
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.55, 80))
	require.NoError(t, m.RecordFill(ctx, "cond-1", "No", "tok-no", domain.OrderSideBuy, 0.45, 80))

	params := mmParams()
	params.AutoMerge = false
	merged, err := m.MaybeMerge(ctx, "cond-1", params)
	require.NoError(t, err)
	assert.Zero(t, merged)
	assert.Zero(t, merger.calls)
}

func TestMaybeMergeFailureLeavesPositions(t *testing.T) {
	merger := &fakeMerger{err: errors.New("relayer down")}
	m := NewManager(merger, nil, testLogger())
	ctx := context.Background()
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.55, 80))
	require.NoError(t, m.RecordFill(ctx, "cond-1", "No", "tok-no", domain.OrderSideBuy, 0.45, 80))

	_, err := m.MaybeMerge(ctx, "cond-1", mmParams())
	assert.Error(t, err)

	inv := m.Inventory("cond-1")
	assert.InDelta(t, 80, inv.YesPosition, 1e-9)
	assert.InDelta(t, 80, inv.NoPosition, 1e-9)
}

func TestSnapshotCopies(t *testing.T) {
	m := NewManager(nil, nil, testLogger())
	ctx := context.Background()
	require.NoError(t, m.RecordFill(ctx, "cond-1", "Yes", "tok", domain.OrderSideBuy, 0.5, 10))
	require.NoError(t, m.RecordFill(ctx, "cond-2", "No", "tok2", domain.OrderSideBuy, 0.5, 10))

	snaps := m.Snapshot()
	assert.Len(t, snaps, 2)
}
