package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"borsatahmin/config"
	"borsatahmin/market"
	"borsatahmin/ml"
)

// stubModels serves canned predictions; unknown symbols force the technical
// fallback path.
type stubModels struct {
	preds map[string]*ml.Prediction
}

func (s *stubModels) Predict(_ context.Context, symbol string, _ config.Horizon) (*ml.Prediction, error) {
	if p, ok := s.preds[symbol]; ok {
		return p, nil
	}
	return nil, errors.New("no model for symbol")
}

func flatBars(symbol string, n int, price float64) market.Series {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	bars := make(market.Series, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, market.Bar{
			Symbol: symbol,
			Open:   price, High: price, Low: price, Close: price,
			Volume:    1000,
			Timestamp: start.AddDate(0, 0, i),
		})
	}
	return bars
}

func newTestRecommender(t *testing.T, cfg *config.Config, fixed map[string]market.Series, preds map[string]*ml.Prediction) *Recommender {
	t.Helper()
	cache, err := market.NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pm := market.NewProviderManager(time.Second, &market.MockProvider{Fixed: fixed})
	fetcher := market.NewFetcher(pm, cache, "XU100.IS", 0)
	return NewRecommender(cfg, fetcher, nil, &stubModels{preds: preds})
}

func TestApplyActionRules(t *testing.T) {
	down := func(conf float64) *ml.Prediction {
		return &ml.Prediction{Direction: ml.DirectionDown, Confidence: conf}
	}
	up := func(conf float64) *ml.Prediction {
		return &ml.Prediction{Direction: ml.DirectionUp, Confidence: conf}
	}

	tests := []struct {
		name       string
		pred       *ml.Prediction
		pnlPct     float64
		wantAction string
		wantQty    float64
	}{
		{"no prediction", nil, 5, ActionHold, 0},
		{"strong down in profit", down(0.70), 5, ActionPartialSell, 50},
		{"strong down deep loss", down(0.70), -10, ActionSell, 100},
		{"strong down small loss", down(0.70), -3, ActionPartialSell, 50},
		{"strong down flat", down(0.70), 1.5, ActionHold, 0},
		{"weak down in profit", down(0.57), 3, ActionPartialSell, 50},
		{"weak down deep loss", down(0.57), -6, ActionPartialSell, 50},
		{"weak down flat", down(0.57), 0, ActionHold, 0},
		{"strong up", up(0.70), -2, ActionIncrease, 0},
		{"strong up deep loss", up(0.70), -10, ActionHold, 0},
		{"weak up", up(0.50), 4, ActionHold, 0},
	}
	for _, tt := range tests {
		action, qty, reason := applyActionRules(tt.pred, tt.pnlPct, 100)
		if action != tt.wantAction || qty != tt.wantQty {
			t.Errorf("%s: got (%s, %.0f), want (%s, %.0f)", tt.name, action, qty, tt.wantAction, tt.wantQty)
		}
		if reason == "" {
			t.Errorf("%s: empty reason", tt.name)
		}
	}
}

func TestSelectPicks(t *testing.T) {
	rc := config.Default().Recommender
	up := func(symbol string, conf float64) *CandidateScore {
		return &CandidateScore{
			Symbol:     symbol,
			Score:      conf * 100,
			Prediction: &ml.Prediction{Direction: ml.DirectionUp, Confidence: conf},
		}
	}

	t.Run("primary cutoff", func(t *testing.T) {
		scored := []*CandidateScore{up("A", 0.80), up("B", 0.70), up("C", 0.50), up("D", 0.44)}
		picks := selectPicks(scored, rc)
		if len(picks) != 3 || picks[0].Symbol != "A" || picks[2].Symbol != "C" {
			t.Errorf("picks = %v", symbolsOf(picks))
		}
	})

	t.Run("relaxed cutoff", func(t *testing.T) {
		scored := []*CandidateScore{up("A", 0.46), up("B", 0.46), up("C", 0.46)}
		picks := selectPicks(scored, rc)
		if len(picks) != 3 {
			t.Errorf("relaxed ladder picked %d, want 3", len(picks))
		}
	})

	t.Run("forced top of table", func(t *testing.T) {
		scored := []*CandidateScore{up("A", 0.40), up("B", 0.40), up("C", 0.40), up("D", 0.40)}
		picks := selectPicks(scored, rc)
		if len(picks) != 3 {
			t.Errorf("forced fallback picked %d, want top 3", len(picks))
		}
	})

	t.Run("too few candidates", func(t *testing.T) {
		scored := []*CandidateScore{up("A", 0.40), up("B", 0.40)}
		if picks := selectPicks(scored, rc); len(picks) != 0 {
			t.Errorf("picked %d from a sub-minimum table", len(picks))
		}
	})
}

func symbolsOf(picks []*CandidateScore) []string {
	out := make([]string, len(picks))
	for i, p := range picks {
		out[i] = p.Symbol
	}
	return out
}

func TestAllocationPct(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{1, 0.30}, {2, 0.30}, {3, 0.20}, {4, 0.18}, {5, 0.18}, {6, 0.15}, {9, 0.15},
	}
	for _, tt := range tests {
		if got := allocationPct(tt.n); got != tt.want {
			t.Errorf("allocationPct(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestRecommendThreePhases(t *testing.T) {
	cfg := config.Default()
	cfg.TargetStocks = []string{"AAA.IS", "BBB.IS", "CCC.IS", "DDD.IS"}
	cfg.Recommender.MinCashReserve = 5000

	fixed := map[string]market.Series{
		"AAA.IS": flatBars("AAA.IS", 80, 60),
		"BBB.IS": flatBars("BBB.IS", 80, 10),
		"CCC.IS": flatBars("CCC.IS", 80, 10),
		"DDD.IS": flatBars("DDD.IS", 80, 10),
	}
	preds := map[string]*ml.Prediction{
		"AAA.IS": {Symbol: "AAA.IS", Direction: ml.DirectionDown, Confidence: 0.80},
		"BBB.IS": {Symbol: "BBB.IS", Direction: ml.DirectionUp, Confidence: 0.75},
		"CCC.IS": {Symbol: "CCC.IS", Direction: ml.DirectionUp, Confidence: 0.70},
		"DDD.IS": {Symbol: "DDD.IS", Direction: ml.DirectionUp, Confidence: 0.65},
	}

	r := newTestRecommender(t, cfg, fixed, preds)
	portfolio := &Portfolio{
		Positions: []Position{{Symbol: "AAA.IS", Quantity: 100, AverageCost: 70}},
		Cash:      10000,
	}

	recs, _, err := r.Recommend(context.Background(), portfolio, config.MediumTerm)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d recommendations, want 4: %+v", len(recs), recs)
	}

	// Sells come first, then the new buys in score order.
	sell := recs[0]
	if sell.Symbol != "AAA.IS" || sell.Action != ActionSell {
		t.Fatalf("first rec = %s %s, want AAA.IS SELL", sell.Symbol, sell.Action)
	}
	if sell.Quantity != 100 || sell.RecommendedValue != 6000 {
		t.Errorf("sell qty/value = %.0f/%.0f, want 100/6000", sell.Quantity, sell.RecommendedValue)
	}

	wantBuys := []struct {
		symbol string
		value  float64
	}{
		// 20% of the 16000 post-sale cash each; the last pick absorbs the
		// residual up to the 30% single-name cap.
		{"BBB.IS", 3200},
		{"CCC.IS", 3200},
		{"DDD.IS", 4800},
	}
	spent := 0.0
	for i, want := range wantBuys {
		rec := recs[i+1]
		if rec.Action != ActionBuyNew {
			t.Fatalf("rec %d action = %s, want BUY_NEW", i+1, rec.Action)
		}
		if rec.Symbol != want.symbol {
			t.Errorf("buy %d = %s, want %s (score order)", i, rec.Symbol, want.symbol)
		}
		if rec.RecommendedValue != want.value {
			t.Errorf("%s value = %.0f, want %.0f", rec.Symbol, rec.RecommendedValue, want.value)
		}
		spent += rec.RecommendedValue
	}

	// Buys never exceed cash plus sale proceeds.
	if spent > portfolio.Cash+sell.RecommendedValue {
		t.Errorf("spent %.0f exceeds available %.0f", spent, portfolio.Cash+sell.RecommendedValue)
	}
}

func TestRecommendRespectsCashReserve(t *testing.T) {
	cfg := config.Default()
	cfg.TargetStocks = []string{"BBB.IS"}
	cfg.Recommender.MinCashReserve = 30000

	fixed := map[string]market.Series{"BBB.IS": flatBars("BBB.IS", 80, 10)}
	preds := map[string]*ml.Prediction{
		"BBB.IS": {Symbol: "BBB.IS", Direction: ml.DirectionUp, Confidence: 0.90},
	}

	r := newTestRecommender(t, cfg, fixed, preds)
	recs, _, err := r.Recommend(context.Background(), &Portfolio{Cash: 16000}, config.MediumTerm)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range recs {
		if rec.Action == ActionBuyNew {
			t.Errorf("new position %s opened below the cash reserve", rec.Symbol)
		}
	}
}
