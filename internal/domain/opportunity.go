package domain

import "time"

// StrategyType identifies which strategy detected and owns an opportunity.
type StrategyType string

const (
	StrategyMintSplit      StrategyType = "MINT_SPLIT"
	StrategyArbitrageLong  StrategyType = "ARBITRAGE_LONG"
	StrategyArbitrageShort StrategyType = "ARBITRAGE_SHORT"
	StrategyMarketMaking   StrategyType = "MARKET_MAKING"
)

// StrategyTypes lists every known strategy in a stable order.
var StrategyTypes = []StrategyType{
	StrategyMintSplit,
	StrategyArbitrageLong,
	StrategyArbitrageShort,
	StrategyMarketMaking,
}

// Valid reports whether t is one of the known strategy types.
func (t StrategyType) Valid() bool {
	switch t {
	case StrategyMintSplit, StrategyArbitrageLong, StrategyArbitrageShort, StrategyMarketMaking:
		return true
	}
	return false
}

// OpportunityStatus is the lifecycle state of an opportunity.
type OpportunityStatus string

const (
	StatusPending   OpportunityStatus = "PENDING"
	StatusQueued    OpportunityStatus = "QUEUED"
	StatusExecuting OpportunityStatus = "EXECUTING"
	StatusSuccess   OpportunityStatus = "SUCCESS"
	StatusPartial   OpportunityStatus = "PARTIAL"
	StatusFailed    OpportunityStatus = "FAILED"
	StatusExpired   OpportunityStatus = "EXPIRED"
	StatusCancelled OpportunityStatus = "CANCELLED"
)

// Terminal reports whether the status is an end state. PARTIAL counts as
// terminal for accounting; reconciliation of partial fills happens outside
// the core pipeline.
func (s OpportunityStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// InFlight reports whether the status counts toward the per-market
// in-flight uniqueness rule.
func (s OpportunityStatus) InFlight() bool {
	return s == StatusQueued || s == StatusExecuting
}

// CanTransition reports whether the state machine permits moving from one
// status to another. Cancellation is allowed from any non-terminal state;
// expiry only from PENDING or QUEUED.
func CanTransition(from, to OpportunityStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusQueued:
		return from == StatusPending
	case StatusExecuting:
		return from == StatusQueued
	case StatusSuccess, StatusPartial, StatusFailed:
		return from == StatusExecuting
	case StatusExpired:
		return from == StatusPending || from == StatusQueued
	case StatusCancelled:
		return true
	}
	return false
}

// Confidence grades a mint-split opportunity for optional auto-execution.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// TokenLeg is one outcome leg of an opportunity.
type TokenLeg struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Filled  float64 `json:"filled"`
	Status  string  `json:"status"`
}

// ExecutionStep records one action the executor took for an opportunity.
// The list is append-only and owned by the executor.
type ExecutionStep struct {
	Step      int       `json:"step"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Opportunity is a detected pricing inefficiency tracked through the
// execution pipeline. Created by the classifier in state PENDING; mutated
// only by the lifecycle manager and executor; retained after completion as
// an audit record.
type Opportunity struct {
	ID               string            `json:"id"`
	ConditionID      string            `json:"condition_id"`
	Question         string            `json:"question"`
	Strategy         StrategyType      `json:"strategy"`
	PriceSum         float64           `json:"price_sum"`
	Spread           float64           `json:"spread"`
	ExpectedProfit   float64           `json:"expected_profit"`
	ActualProfit     float64           `json:"actual_profit"`
	InvestmentAmount float64           `json:"investment_amount"`
	Confidence       Confidence        `json:"confidence,omitempty"`
	Tokens           []TokenLeg        `json:"tokens"`
	Status           OpportunityStatus `json:"status"`
	Steps            []ExecutionStep   `json:"steps,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	RetryCount       int               `json:"retry_count"`
	CreatedAt        time.Time         `json:"created_at"`
	QueuedAt         *time.Time        `json:"queued_at,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing live slices.
func (o Opportunity) Clone() Opportunity {
	out := o
	if o.Tokens != nil {
		out.Tokens = make([]TokenLeg, len(o.Tokens))
		copy(out.Tokens, o.Tokens)
	}
	if o.Steps != nil {
		out.Steps = make([]ExecutionStep, len(o.Steps))
		copy(out.Steps, o.Steps)
	}
	if o.QueuedAt != nil {
		t := *o.QueuedAt
		out.QueuedAt = &t
	}
	if o.StartedAt != nil {
		t := *o.StartedAt
		out.StartedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// AppendStep appends an execution step with the next step index.
func (o *Opportunity) AppendStep(action, status, txHash, errMsg string) {
	o.Steps = append(o.Steps, ExecutionStep{
		Step:      len(o.Steps),
		Action:    action,
		Status:    status,
		Timestamp: time.Now().UTC(),
		TxHash:    txHash,
		Error:     errMsg,
	})
}

// OpportunityFilter narrows List queries over the opportunity store.
type OpportunityFilter struct {
	Strategy    StrategyType
	Status      OpportunityStatus
	ConditionID string
	Since       *time.Time
	Limit       int
	Offset      int
}
