package trading

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"borsatahmin/config"
	"borsatahmin/logger"
	"borsatahmin/market"
	"borsatahmin/ml"
)

// PredictionSource resolves a prediction for (symbol, horizon), training a
// model first when none exists. Implementations are best-effort: an error
// means the recommender falls back to technical signals.
type PredictionSource interface {
	Predict(ctx context.Context, symbol string, horizon config.Horizon) (*ml.Prediction, error)
}

// Recommender produces the three-phase recommendation paper for a portfolio.
type Recommender struct {
	cfg     atomic.Pointer[config.Config]
	fetcher *market.Fetcher
	regime  *market.RegimeDetector
	models  PredictionSource
	now     func() time.Time
}

func NewRecommender(cfg *config.Config, fetcher *market.Fetcher, regime *market.RegimeDetector, models PredictionSource) *Recommender {
	r := &Recommender{fetcher: fetcher, regime: regime, models: models, now: time.Now}
	r.cfg.Store(cfg)
	return r
}

// SwapConfig installs a new configuration snapshot. Wired to the hot-reload
// watcher; a run in progress keeps the snapshot it started with.
func (r *Recommender) SwapConfig(cfg *config.Config) {
	if cfg != nil {
		r.cfg.Store(cfg)
	}
}

// WithClock overrides the wall clock for tests.
func (r *Recommender) WithClock(now func() time.Time) *Recommender {
	r.now = now
	return r
}

// Recommend runs the three phases in order. Phase 1 finds sells among held
// positions, Phase 2 sizes increases from post-sale cash, Phase 3 allocates
// what remains into new names. The regime is a tactical overlay only.
func (r *Recommender) Recommend(ctx context.Context, portfolio *Portfolio, horizon config.Horizon) ([]Recommendation, *market.Regime, error) {
	if portfolio == nil {
		return nil, nil, fmt.Errorf("recommend: nil portfolio")
	}

	var regime *market.Regime
	if r.regime != nil {
		regime = r.regime.Detect(ctx)
	}

	recs, sellProceeds, increases := r.phaseExisting(ctx, portfolio, horizon)

	available := portfolio.Cash + sellProceeds
	recs, available = r.phaseIncrease(recs, increases, available)

	recs = r.phaseNewPositions(ctx, portfolio, horizon, recs, portfolio.Cash+sellProceeds, available, regime)

	sort.SliceStable(recs, func(i, j int) bool {
		return actionRank(recs[i].Action) < actionRank(recs[j].Action)
	})
	return recs, regime, nil
}

// increaseCandidate defers sizing to Phase 2.
type increaseCandidate struct {
	position Position
	price    float64
	pred     *ml.Prediction
}

// phaseExisting applies the action table to each held position and sums the
// cash freed by sells.
func (r *Recommender) phaseExisting(ctx context.Context, portfolio *Portfolio, horizon config.Horizon) ([]Recommendation, float64, []increaseCandidate) {
	var recs []Recommendation
	var increases []increaseCandidate
	proceeds := 0.0

	for _, pos := range portfolio.Positions {
		bars, err := r.fetcher.Fetch(ctx, pos.Symbol, "1y", market.IntervalDaily)
		if err != nil || bars.Empty() {
			logger.L().Warnw("skipping held position, no bars", "symbol", pos.Symbol, "error", err)
			continue
		}
		price := bars.Last().Close

		pred, fallback := r.resolvePrediction(ctx, pos.Symbol, horizon, bars)
		pnlPct := 0.0
		if pos.AverageCost > 0 {
			pnlPct = (price/pos.AverageCost - 1) * 100
		}

		rec := Recommendation{
			Symbol:           pos.Symbol,
			CurrentPrice:     price,
			UnrealisedPnLPct: pnlPct,
			Timestamp:        r.now(),
		}
		if pred != nil {
			rec.Confidence = pred.Confidence
		}

		action, qty, reason := applyActionRules(pred, pnlPct, pos.Quantity)
		rec.Action = action
		rec.Quantity = qty
		rec.Reason = reason
		if fallback && pred != nil {
			rec.Details = append(rec.Details, "model yok, teknik sinyal kullanıldı")
		}
		rec.Details = appendPositionDetails(rec.Details, bars, pnlPct)

		switch action {
		case ActionSell, ActionPartialSell:
			rec.RecommendedValue = qty * price
			proceeds += rec.RecommendedValue
			recs = append(recs, rec)
		case ActionIncrease:
			// Sizing happens in Phase 2 once proceeds are known.
			increases = append(increases, increaseCandidate{position: pos, price: price, pred: pred})
		default:
			recs = append(recs, rec)
		}
	}
	return recs, proceeds, increases
}

// applyActionRules is the Phase 1 decision table.
func applyActionRules(pred *ml.Prediction, pnlPct, quantity float64) (action string, qty float64, reason string) {
	if pred == nil {
		return ActionHold, 0, "tahmin üretilemedi, pozisyon korunuyor"
	}

	conf := pred.Confidence
	switch {
	case pred.Direction == ml.DirectionDown && conf > 0.60:
		switch {
		case pnlPct > 3:
			return ActionPartialSell, math.Floor(quantity / 2), fmt.Sprintf("düşüş tahmini (güven %.2f), kâr realizasyonu", conf)
		case pnlPct < -7:
			return ActionSell, quantity, fmt.Sprintf("düşüş tahmini (güven %.2f), zarar derinleşmeden çıkış", conf)
		case pnlPct >= -5 && pnlPct <= 0:
			return ActionPartialSell, math.Floor(quantity / 2), fmt.Sprintf("düşüş tahmini (güven %.2f), riski azalt", conf)
		}
	case pred.Direction == ml.DirectionDown && conf >= 0.55:
		if pnlPct > 2 || pnlPct < -5 {
			return ActionPartialSell, math.Floor(quantity / 2), fmt.Sprintf("zayıf düşüş sinyali (güven %.2f), kısmi satış", conf)
		}
	case pred.Direction == ml.DirectionUp && conf > 0.60:
		if pnlPct >= -5 {
			return ActionIncrease, 0, fmt.Sprintf("yükseliş tahmini (güven %.2f), pozisyon artır", conf)
		}
		return ActionHold, 0, fmt.Sprintf("yükseliş tahmini ama pozisyon %%%.1f zararda, ortalama düşürülmüyor", pnlPct)
	}
	return ActionHold, 0, fmt.Sprintf("net sinyal yok (%s, güven %.2f), pozisyon korunuyor", pred.Direction, pred.Confidence)
}

// phaseIncrease sizes INCREASE candidates against post-sale cash. Returns the
// updated list and the cash left for Phase 3.
func (r *Recommender) phaseIncrease(recs []Recommendation, increases []increaseCandidate, available float64) ([]Recommendation, float64) {
	for _, cand := range increases {
		rec := Recommendation{
			Symbol:       cand.position.Symbol,
			CurrentPrice: cand.price,
			Confidence:   cand.pred.Confidence,
			Timestamp:    r.now(),
		}

		currentValue := cand.position.Quantity * cand.price
		budget := math.Min(available*0.15, currentValue*0.40)
		qty := math.Floor(budget / cand.price)
		if qty < 1 {
			qty = 1
		}
		cost := qty * cand.price

		if cost > available {
			rec.Action = ActionHold
			rec.Reason = "yükseliş tahmini var ama nakit yetersiz, pozisyon korunuyor"
			recs = append(recs, rec)
			continue
		}

		available -= cost
		rec.Action = ActionIncrease
		rec.Quantity = qty
		rec.RecommendedValue = cost
		rec.Reason = fmt.Sprintf("yükseliş tahmini (güven %.2f), %d lot ekleme", cand.pred.Confidence, int(qty))
		recs = append(recs, rec)
	}
	return recs, available
}

// phaseNewPositions scores the non-held universe and allocates remaining cash
// into the best names. Allocation percentages are defined on total post-sale
// cash while the stop condition runs on the decrementing balance.
func (r *Recommender) phaseNewPositions(ctx context.Context, portfolio *Portfolio, horizon config.Horizon, recs []Recommendation, totalAfterSells, remaining float64, regime *market.Regime) []Recommendation {
	cfg := r.cfg.Load()
	rc := cfg.Recommender
	if remaining < rc.MinCashReserve {
		return recs
	}

	var scored []*CandidateScore
	for _, symbol := range cfg.TargetStocks {
		if portfolio.Holds(symbol) {
			continue
		}
		bars, err := r.fetcher.Fetch(ctx, symbol, "1y", market.IntervalDaily)
		if err != nil || len(bars) < 60 {
			logger.L().Debugw("universe symbol skipped", "symbol", symbol, "error", err)
			continue
		}
		pred, _ := r.resolvePrediction(ctx, symbol, horizon, bars)
		scored = append(scored, ScoreCandidate(symbol, bars, pred))
	}
	if len(scored) == 0 {
		return recs
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	picks := selectPicks(scored, rc)
	if len(picks) == 0 {
		return recs
	}

	allocPct := allocationPct(len(picks))
	for i, pick := range picks {
		value := totalAfterSells * allocPct
		if i == len(picks)-1 {
			// Last pick may absorb the residual, capped at the single-name max.
			residual := math.Min(remaining, totalAfterSells*0.30)
			if residual > value {
				value = residual
			}
		}
		minTicket := 50 * pick.Price
		if value < minTicket {
			value = minTicket
		}
		if value > remaining {
			value = remaining
		}
		if pick.Price <= 0 || value < pick.Price {
			continue
		}

		qty := math.Floor(value / pick.Price)
		cost := qty * pick.Price
		remaining -= cost

		rec := Recommendation{
			Symbol:           pick.Symbol,
			Action:           ActionBuyNew,
			Quantity:         qty,
			CurrentPrice:     pick.Price,
			RecommendedValue: cost,
			Score:            pick.Score,
			Reason:           fmt.Sprintf("yeni pozisyon adayı, skor %.0f/100", pick.Score),
			Details:          limitDetails(pick.Details),
			Timestamp:        r.now(),
		}
		if pick.Prediction != nil {
			rec.Confidence = pick.Prediction.Confidence
		}
		if regime != nil && regime.TacticalHint != "" {
			rec.Details = limitDetails(append(rec.Details, regimeComment(regime)))
		}
		recs = append(recs, rec)

		if remaining <= 0 {
			break
		}
	}
	return recs
}

// selectPicks applies the confidence cut-off ladder: primary cut-off, then
// the relaxed one, and as a last resort the raw top of the score table.
func selectPicks(scored []*CandidateScore, rc config.RecommenderConfig) []*CandidateScore {
	eligible := func(cutoff float64) []*CandidateScore {
		var out []*CandidateScore
		for _, c := range scored {
			if c.Prediction != nil && c.Prediction.Direction == ml.DirectionUp && c.Prediction.Confidence > cutoff {
				out = append(out, c)
			}
			if len(out) == rc.MaxNewPositions {
				break
			}
		}
		return out
	}

	picks := eligible(rc.NewPositionCutoff)
	if len(picks) < rc.MinNewPositions {
		picks = eligible(rc.RelaxedCutoff)
	}
	if len(picks) < rc.MinNewPositions && len(scored) >= rc.MinNewPositions {
		picks = scored[:rc.MinNewPositions]
	}
	return picks
}

// allocationPct maps the number of picks to the per-name share of total
// post-sale cash.
func allocationPct(n int) float64 {
	switch {
	case n <= 2:
		return 0.30
	case n == 3:
		return 0.20
	case n <= 5:
		return 0.18
	default:
		return 0.15
	}
}

// resolvePrediction tries the model source first, then the technical
// fallback. The second return reports whether the fallback was used.
func (r *Recommender) resolvePrediction(ctx context.Context, symbol string, horizon config.Horizon, bars market.Series) (*ml.Prediction, bool) {
	if r.models != nil {
		pred, err := r.models.Predict(ctx, symbol, horizon)
		if err == nil && pred != nil {
			return pred, false
		}
		if err != nil {
			logger.L().Debugw("model prediction unavailable", "symbol", symbol, "horizon", horizon, "error", err)
		}
	}
	return TechnicalSignal(bars), true
}

func appendPositionDetails(details []string, bars market.Series, pnlPct float64) []string {
	closes := bars.Closes()
	rsi := market.CalculateRSI(closes, 14)
	details = append(details, fmt.Sprintf("RSI(14) %.0f", rsi))

	_, _, hist := market.CalculateMACD(closes)
	if hist > 0 {
		details = append(details, "MACD histogram pozitif")
	} else {
		details = append(details, "MACD histogram negatif")
	}

	week := market.PercentChange(closes, 5)
	details = append(details, fmt.Sprintf("haftalık değişim %%%.1f", week*100))
	details = append(details, fmt.Sprintf("pozisyon K/Z %%%.1f", pnlPct))
	return limitDetails(details)
}

func regimeComment(regime *market.Regime) string {
	switch regime.TacticalHint {
	case market.HintBuyTheDip:
		return "endeks düşüş rejiminde, alımlar kademeli yapılmalı"
	case market.HintRealiseGains:
		return "endeks yükseliş rejiminde, kâr realizasyonu öne çekilebilir"
	default:
		return ""
	}
}

// limitDetails keeps at most five supporting bullets.
func limitDetails(details []string) []string {
	if len(details) > 5 {
		return details[:5]
	}
	return details
}
