package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"borsatahmin/config"
	"borsatahmin/market"
	"borsatahmin/ml"
	"borsatahmin/monitoring"
	"borsatahmin/trading"
)

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/bars/{symbol}", s.handleBars)
	mux.HandleFunc("GET /api/predict/{symbol}", s.handlePredict)
	mux.HandleFunc("POST /api/train/{symbol}", s.handleTrain)
	mux.HandleFunc("GET /api/analyze/{symbol}", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyzeBatch)
	mux.HandleFunc("POST /api/recommend", s.handleRecommend)
	mux.HandleFunc("GET /api/regime", s.handleRegime)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	if s.hub != nil {
		mux.HandleFunc("GET /api/ws/progress", s.hub.ServeWS)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// horizonParam reads ?horizon= falling back to the configured default.
func (s *Server) horizonParam(r *http.Request) (config.Horizon, error) {
	raw := r.URL.Query().Get("horizon")
	if raw == "" {
		raw = s.cfg.Model.InvestmentHorizon
	}
	return config.ParseHorizon(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "6mo"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = market.IntervalDaily
	}

	bars, err := s.fetcher.Fetch(r.Context(), symbol, period, interval)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if bars.Empty() {
		writeError(w, http.StatusNotFound, errors.New("no bars for "+symbol))
		return
	}
	writeJSON(w, http.StatusOK, bars)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	horizon, err := s.horizonParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pred, err := s.engine.Predict(r.Context(), symbol, horizon)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ml.ErrModelNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ml.ErrInsufficientHistory):
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	horizon, err := s.horizonParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	clf, err := s.engine.Train(r.Context(), symbol, horizon)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ml.ErrInsufficientHistory) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":     clf.Symbol,
		"horizon":    clf.Horizon,
		"metrics":    clf.Metrics,
		"volatility": clf.Volatility,
		"trained_at": clf.TrainedAt,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	horizon, err := s.horizonParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	analysis, err := s.engine.Analyze(r.Context(), symbol, horizon)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type batchRequest struct {
	Symbols []string `json:"symbols"`
	Horizon string   `json:"horizon"`
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Symbols) == 0 {
		req.Symbols = s.cfg.TargetStocks
	}
	if req.Horizon == "" {
		req.Horizon = s.cfg.Model.InvestmentHorizon
	}
	horizon, err := config.ParseHorizon(req.Horizon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result := s.engine.AnalyzeBatch(r.Context(), req.Symbols, horizon, s.publishProgress)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) publishProgress(stage, symbol string, done, total int) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(monitoring.Event{Stage: stage, Symbol: symbol, Done: done, Total: total})
}

type recommendRequest struct {
	Portfolio trading.Portfolio `json:"portfolio"`
	Horizon   string            `json:"horizon"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Horizon == "" {
		req.Horizon = s.cfg.Model.InvestmentHorizon
	}
	horizon, err := config.ParseHorizon(req.Horizon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	recs, regime, err := s.recommender.Recommend(r.Context(), &req.Portfolio, horizon)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	runID := time.Now().Format("20060102_150405")
	if s.history != nil {
		if derr := s.history.SaveRecommendations(runID, recs); derr != nil {
			// Persistence is best-effort for the paper itself.
			writeJSON(w, http.StatusOK, map[string]any{
				"run_id": runID, "recommendations": recs, "regime": regime, "persist_error": derr.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID, "recommendations": recs, "regime": regime,
	})
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	regime := s.regime.Detect(r.Context())
	if regime == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("market index unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, regime)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models, "count": len(models)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history database not configured"))
		return
	}
	symbol := r.PathValue("symbol")
	preds, err := s.history.RecentPredictions(symbol, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}
