package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexBool(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"json bool true", `true`, true},
		{"json bool false", `false`, false},
		{"string true", `"true"`, true},
		{"string True", `"True"`, true},
		{"string false", `"false"`, false},
		{"string one", `"1"`, true},
		{"garbage string", `"yes"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f flexBool
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
			assert.Equal(t, tt.want, bool(f))
		})
	}
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"json number", `1234.5`, 1234.5},
		{"numeric string", `"1234.5"`, 1234.5},
		{"empty string", `""`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f flexFloat
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
			assert.Equal(t, tt.want, float64(f))
		})
	}

	var f flexFloat
	assert.Error(t, json.Unmarshal([]byte(`"not a number"`), &f))
}

func TestAPIMarketToRawMarket(t *testing.T) {
	raw := `{
		"conditionId": "0xcond",
		"question": "Will X happen?",
		"active": "true",
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0.55\",\"0.40\"]",
		"clobTokenIds": "[\"111\",\"222\"]",
		"liquidityNum": "5000.5",
		"volumeNum": 12000,
		"enableOrderBook": true
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	rm, err := m.ToRawMarket()
	require.NoError(t, err)
	assert.Equal(t, "0xcond", rm.ConditionID)
	assert.Equal(t, []string{"Yes", "No"}, rm.OutcomeLabels)
	assert.Equal(t, []float64{0.55, 0.40}, rm.OutcomePrices)
	assert.Equal(t, []string{"111", "222"}, rm.TokenIDs)
	assert.Equal(t, 5000.5, rm.Liquidity)
	assert.Equal(t, 12000.0, rm.Volume)
	assert.True(t, rm.EnableOrderBook)
}

func TestAPIMarketMalformedArrays(t *testing.T) {
	m := APIMarket{
		ConditionID: "0xcond",
		Outcomes:    `["Yes","No"`,
	}
	_, err := m.ToRawMarket()
	assert.Error(t, err)

	m = APIMarket{
		ConditionID:   "0xcond",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.5","oops"]`,
	}
	_, err = m.ToRawMarket()
	assert.Error(t, err)
}

func TestAPIMarketEmptyArraysDecodeToNil(t *testing.T) {
	m := APIMarket{ConditionID: "0xcond"}
	rm, err := m.ToRawMarket()
	require.NoError(t, err)
	assert.Nil(t, rm.OutcomeLabels)
	assert.Nil(t, rm.TokenIDs)
}

func TestAPIBookToDomainBook(t *testing.T) {
	book := APIBook{
		AssetID: "tok-1",
		// Unordered on purpose; the CLOB does not guarantee level order.
		Bids: []APIPriceLevel{
			{Price: "0.45", Size: "100"},
			{Price: "0.48", Size: "50"},
		},
		Asks: []APIPriceLevel{
			{Price: "0.55", Size: "30"},
			{Price: "0.52", Size: "70"},
		},
		Timestamp: "1700000000000",
	}

	db := book.ToDomainBook()
	assert.Equal(t, "tok-1", db.TokenID)
	require.Len(t, db.Bids, 2)
	require.Len(t, db.Asks, 2)
	assert.Equal(t, 0.48, db.Bids[0].Price, "bids sorted best first")
	assert.Equal(t, 0.52, db.Asks[0].Price, "asks sorted best first")
	assert.Equal(t, int64(1700000000), db.Timestamp.Unix())
}

func TestParseLevelsSkipsBadEntries(t *testing.T) {
	levels := parseLevels([]APIPriceLevel{
		{Price: "0.50", Size: "100"},
		{Price: "bad", Size: "100"},
		{Price: "0.40", Size: "0"},
		{Price: "0.30", Size: "-5"},
	})
	require.Len(t, levels, 1)
	assert.Equal(t, 0.50, levels[0].Price)
}

func TestWSBookMessageToDomainBook(t *testing.T) {
	raw := `{
		"event_type": "book",
		"asset_id": "tok-9",
		"bids": [{"price": "0.48", "size": "10"}],
		"asks": [{"price": "0.52", "size": "10"}],
		"timestamp": "1700000000000"
	}`
	var msg WSBookMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, "book", msg.EventType)

	db := msg.ToDomainBook()
	assert.Equal(t, "tok-9", db.TokenID)
	assert.Equal(t, 0.48, db.BestBid())
	assert.Equal(t, 0.52, db.BestAsk())
}

func TestAPIOrderToDomainOrder(t *testing.T) {
	o := APIOrder{
		ID:           "order-1",
		Status:       "LIVE",
		AssetID:      "tok-1",
		Side:         "SELL",
		OriginalSize: "100",
		SizeMatched:  "25.5",
		Price:        "0.48",
		CreatedAt:    "2026-01-02T15:04:05Z",
	}
	d := o.ToDomainOrder()
	assert.Equal(t, "order-1", d.ID)
	assert.Equal(t, "SELL", string(d.Side))
	assert.Equal(t, 100.0, d.Size)
	assert.Equal(t, 25.5, d.Filled)
	assert.Equal(t, 0.48, d.Price)
	assert.Equal(t, 2026, d.CreatedAt.Year())
}
