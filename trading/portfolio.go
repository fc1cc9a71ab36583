package trading

import "time"

// Recommendation actions, in execution order.
const (
	ActionSell        = "SELL"
	ActionPartialSell = "PARTIAL_SELL"
	ActionBuyNew      = "BUY_NEW"
	ActionIncrease    = "INCREASE"
	ActionHold        = "HOLD"
)

// Position is one held lot in the user's portfolio.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
}

// Portfolio is the recommender input: held positions plus free cash in TRY.
type Portfolio struct {
	Positions []Position `json:"positions"`
	Cash      float64    `json:"cash"`
}

// Holds reports whether the portfolio contains the symbol.
func (p *Portfolio) Holds(symbol string) bool {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return true
		}
	}
	return false
}

// Recommendation is one actionable line of the recommendation paper.
type Recommendation struct {
	Symbol           string    `json:"symbol"`
	Action           string    `json:"action"`
	Quantity         float64   `json:"quantity,omitempty"`
	CurrentPrice     float64   `json:"current_price"`
	RecommendedValue float64   `json:"recommended_value,omitempty"`
	UnrealisedPnLPct float64   `json:"unrealised_pnl_pct,omitempty"`
	Confidence       float64   `json:"confidence,omitempty"`
	Score            float64   `json:"score,omitempty"`
	Reason           string    `json:"reason"`
	Details          []string  `json:"details,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// actionRank orders the paper so users execute sales first, deploy proceeds
// into new names, then top up existing ones.
func actionRank(action string) int {
	switch action {
	case ActionSell, ActionPartialSell:
		return 0
	case ActionBuyNew:
		return 1
	case ActionIncrease:
		return 2
	default:
		return 3
	}
}
