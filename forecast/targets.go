package forecast

import (
	"fmt"
	"math"
	"time"

	"borsatahmin/config"
	"borsatahmin/market"
	"borsatahmin/ml"
)

// Target kinds in ascending ambition.
const (
	KindConservative = "conservative"
	KindModerate     = "moderate"
	KindAggressive   = "aggressive"
)

// Estimated-days bounds. Estimates always land between two weeks and six
// months; the max window can stretch to eighteen months.
const (
	minEstimateDays = 14
	maxEstimateDays = 180
)

// ModelPerformance snapshots how much the time estimate trusts the model.
type ModelPerformance struct {
	TestAccuracy float64 `json:"test_accuracy"`
	Confidence   float64 `json:"confidence"`
	Reliability  float64 `json:"reliability"`
	Factor       float64 `json:"factor"`
}

// TimeTarget is the time-to-target distribution for one price target, with
// the analysis snapshots that produced it.
type TimeTarget struct {
	MinDays       int            `json:"min_days"`
	EstimatedDays int            `json:"estimated_days"`
	MaxDays       int            `json:"max_days"`
	MinDate       time.Time      `json:"min_date"`
	EstimatedDate time.Time      `json:"estimated_date"`
	MaxDate       time.Time      `json:"max_date"`
	Chart         *ChartAnalysis `json:"chart"`
	Analogues     *AnalogueStats `json:"analogues,omitempty"`
	Model         *ModelPerformance `json:"model,omitempty"`
}

// PriceTargets is the full estimator output for one symbol.
type PriceTargets struct {
	Symbol       string                 `json:"symbol"`
	CurrentPrice float64                `json:"current_price"`
	Direction    string                 `json:"direction"`
	Confidence   float64                `json:"confidence"`
	Volatility   float64                `json:"volatility"`
	RiskBand     string                 `json:"risk_band"`
	Conservative float64                `json:"conservative"`
	Moderate     float64                `json:"moderate"`
	Aggressive   float64                `json:"aggressive"`
	StopLoss     float64                `json:"stop_loss"`
	RiskReward   float64                `json:"risk_reward"`
	Times        map[string]*TimeTarget `json:"times"`
	GeneratedAt  time.Time              `json:"generated_at"`
}

// Estimator derives price targets and time-to-target distributions from a
// prediction plus the symbol's chart history.
type Estimator struct {
	cfg      *config.Config
	calendar *market.TradingCalendar
	now      func() time.Time
}

func NewEstimator(cfg *config.Config, cal *market.TradingCalendar) *Estimator {
	return &Estimator{cfg: cfg, calendar: cal, now: time.Now}
}

// WithClock overrides the wall clock for tests.
func (e *Estimator) WithClock(now func() time.Time) *Estimator {
	e.now = now
	return e
}

// Estimate builds the price-target record. testAccuracy may be zero when no
// model metrics are available; the model factor then stays neutral.
func (e *Estimator) Estimate(pred *ml.Prediction, bars market.Series, annualisedVol, testAccuracy float64) (*PriceTargets, error) {
	if pred == nil {
		return nil, fmt.Errorf("estimate: nil prediction")
	}
	if bars.Empty() {
		return nil, fmt.Errorf("estimate %s: no bars", pred.Symbol)
	}
	current := bars.Last().Close
	if current <= 0 {
		return nil, fmt.Errorf("estimate %s: non-positive price %.4f", pred.Symbol, current)
	}

	band, risk := e.riskBand(annualisedVol)
	confMult := 0.5 + 0.5*pred.Confidence

	out := &PriceTargets{
		Symbol:       pred.Symbol,
		CurrentPrice: current,
		Direction:    pred.Direction,
		Confidence:   pred.Confidence,
		Volatility:   annualisedVol,
		RiskBand:     band,
		Times:        make(map[string]*TimeTarget, 3),
		GeneratedAt:  e.now(),
	}

	sign := 1.0
	if pred.Direction == ml.DirectionDown {
		sign = -1
	}
	out.Conservative = current * (1 + sign*risk.TakeProfitPct*0.5*confMult)
	out.Moderate = current * (1 + sign*risk.TakeProfitPct*1.0*confMult)
	out.Aggressive = current * (1 + sign*risk.TakeProfitPct*1.5*confMult)
	out.StopLoss = current * (1 - sign*risk.StopLossPct)

	risked := math.Abs(current - out.StopLoss)
	if risked > 0 {
		out.RiskReward = math.Abs(out.Moderate-current) / risked
	}

	chart := AnalyseChart(bars)
	model := modelPerformance(testAccuracy, pred.Confidence)

	targets := map[string]struct {
		price  float64
		factor float64
	}{
		KindConservative: {out.Conservative, 0.8},
		KindModerate:     {out.Moderate, 1.0},
		KindAggressive:   {out.Aggressive, 1.5},
	}
	for kind, t := range targets {
		out.Times[kind] = e.timeToTarget(t.price, current, annualisedVol, t.factor, pred.Confidence, bars, chart, model)
	}
	return out, nil
}

// timeToTarget chains the multiplicative factors onto the volatility-derived
// base estimate.
func (e *Estimator) timeToTarget(target, current, annualisedVol, kindFactor, confidence float64, bars market.Series, chart *ChartAnalysis, model *ModelPerformance) *TimeTarget {
	move := math.Abs(target-current) / current

	// The trailing scale factor is empirically tuned to produce week-to-month
	// horizons on liquid BIST names. Zero volatility degenerates to the floor
	// clamp instead of dividing by zero.
	baseDays := 0.0
	if dailyVol := annualisedVol / math.Sqrt(252); dailyVol > 0 {
		baseDays = move / dailyVol * 10
	}

	analogues := MineAnalogues(bars, move)
	histFactor := analogues.Factor(baseDays, bars)

	confFactor := 0.7 + 0.6*confidence

	estimated := baseDays * chart.Factor() * histFactor * model.Factor * kindFactor * confFactor
	estDays := int(math.Round(estimated))
	if estDays < minEstimateDays {
		estDays = minEstimateDays
	}
	if estDays > maxEstimateDays {
		estDays = maxEstimateDays
	}

	minDays := int(math.Ceil(float64(estDays) * 0.7))
	if minDays < 7 {
		minDays = 7
	}
	maxDays := int(math.Ceil(float64(estDays) * 3.0))

	today := e.now()
	tt := &TimeTarget{
		MinDays:       minDays,
		EstimatedDays: estDays,
		MaxDays:       maxDays,
		Chart:         chart,
		Model:         model,
	}
	if analogues.Count > 0 {
		tt.Analogues = analogues
	}
	tt.MinDate = e.rollForward(today, minDays)
	tt.EstimatedDate = e.rollForward(today, estDays)
	tt.MaxDate = e.rollForward(today, maxDays)
	return tt
}

// rollForward adds calendar days then rolls onto the next exchange session.
func (e *Estimator) rollForward(from time.Time, days int) time.Time {
	t := from.AddDate(0, 0, days)
	if e.calendar != nil {
		t = e.calendar.NextTradingDay(t)
	}
	return t
}

// riskBand maps annualised volatility to the configured stop and take levels.
func (e *Estimator) riskBand(vol float64) (string, config.VolatilityRiskConfig) {
	name := "low"
	switch {
	case vol > 0.60:
		name = "very_high"
	case vol > 0.45:
		name = "high"
	case vol > 0.30:
		name = "medium"
	}
	if e.cfg != nil {
		if risk, ok := e.cfg.Risk.VolatilityBands[name]; ok {
			return name, risk
		}
	}
	// Default ladder when configuration is absent.
	defaults := map[string]config.VolatilityRiskConfig{
		"low":       {StopLossPct: 0.04, TakeProfitPct: 0.08},
		"medium":    {StopLossPct: 0.06, TakeProfitPct: 0.12},
		"high":      {StopLossPct: 0.08, TakeProfitPct: 0.16},
		"very_high": {StopLossPct: 0.10, TakeProfitPct: 0.20},
	}
	return name, defaults[name]
}

// modelPerformance maps test accuracy times confidence onto a categorical
// trust factor. Reliable models tighten the estimate, unproven ones widen it.
func modelPerformance(testAccuracy, confidence float64) *ModelPerformance {
	reliability := testAccuracy * confidence
	factor := 1.2
	switch {
	case reliability >= 0.8:
		factor = 0.8
	case reliability >= 0.7:
		factor = 0.9
	case reliability >= 0.5:
		factor = 1.0
	}
	if testAccuracy == 0 {
		// No metrics available, stay neutral rather than pessimistic.
		factor = 1.0
		reliability = 0
	}
	return &ModelPerformance{
		TestAccuracy: testAccuracy,
		Confidence:   confidence,
		Reliability:  reliability,
		Factor:       factor,
	}
}
