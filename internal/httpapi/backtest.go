package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sawpanic/confluence/internal/backtest"
	"github.com/sawpanic/confluence/internal/domain"
)

type signalBacktestRequest struct {
	Symbol    domain.SymbolId `json:"symbol"`
	Timeframe domain.Timeframe `json:"timeframe"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Step      string          `json:"step"`
	EnterAt   float64         `json:"enter_at"`
	ExitAt    float64         `json:"exit_at"`
	MaxHold   string          `json:"max_hold"`
}

// PostSignalBacktest runs a synchronous walk-forward replay and hands back
// both the full report and an id for later retrieval (spec §4.6, §6.1).
func (h *handlers) PostSignalBacktest(w http.ResponseWriter, r *http.Request) {
	var req signalBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "malformed_body", "request body is not valid JSON")
		return
	}
	if !req.Timeframe.Valid() {
		writeUnprocessable(w, r, "invalid_timeframe", "unsupported timeframe")
		return
	}
	step, err := time.ParseDuration(req.Step)
	if err != nil || step <= 0 {
		writeBadRequest(w, r, "invalid_step", "step must be a valid positive duration, e.g. \"1h\"")
		return
	}
	maxHold, err := time.ParseDuration(req.MaxHold)
	if err != nil || maxHold <= 0 {
		writeBadRequest(w, r, "invalid_max_hold", "max_hold must be a valid positive duration")
		return
	}
	if !req.To.After(req.From) {
		writeBadRequest(w, r, "invalid_range", "to must be after from")
		return
	}

	cfg := backtest.SignalBacktestConfig{
		Symbol: req.Symbol, Timeframe: req.Timeframe, From: req.From, To: req.To,
		Step: step, EnterAt: req.EnterAt, ExitAt: req.ExitAt, MaxHold: maxHold,
	}
	report, err := backtest.RunSignalBacktest(r.Context(), h.store, cfg)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	id := uuid.NewString()
	h.backtests.putSignal(id, report)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "report": report})
}

type cycleBacktestRequest struct {
	Symbol              domain.SymbolId  `json:"symbol"`
	Timeframe           domain.Timeframe `json:"timeframe"`
	From                time.Time        `json:"from"`
	To                  time.Time        `json:"to"`
	CandidatePeriodDays int              `json:"candidate_period_days"`
	ToleranceDays       int              `json:"tolerance_days"`
	DrawdownPct         float64          `json:"drawdown_pct,omitempty"`     // defaults to backtest.DefaultDrawdownPct
	DrawdownWindow      string           `json:"drawdown_window,omitempty"` // defaults to backtest.DefaultDrawdownWindow
}

// PostCycleBacktest discovers whether unlabeled drawdown events cluster near
// multiples of a candidate period (spec §4.6's primary hypothesis validation).
func (h *handlers) PostCycleBacktest(w http.ResponseWriter, r *http.Request) {
	var req cycleBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "malformed_body", "request body is not valid JSON")
		return
	}
	if !req.Timeframe.Valid() {
		writeUnprocessable(w, r, "invalid_timeframe", "unsupported timeframe")
		return
	}
	if !req.To.After(req.From) {
		writeBadRequest(w, r, "invalid_range", "to must be after from")
		return
	}
	if req.CandidatePeriodDays <= 0 {
		writeBadRequest(w, r, "invalid_period", "candidate_period_days must be positive")
		return
	}
	var window time.Duration
	if req.DrawdownWindow != "" {
		var err error
		window, err = time.ParseDuration(req.DrawdownWindow)
		if err != nil || window <= 0 {
			writeBadRequest(w, r, "invalid_drawdown_window", "drawdown_window must be a valid positive duration")
			return
		}
	}

	report, err := backtest.RunCycleBacktest(r.Context(), h.store, req.Symbol, req.Timeframe, req.From, req.To,
		req.CandidatePeriodDays, req.ToleranceDays, req.DrawdownPct, window)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	id := uuid.NewString()
	h.backtests.putCycle(id, report)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "report": report})
}

func (h *handlers) GetBacktestResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, ok := h.backtests.get(id)
	if !ok {
		writeNotFound(w, r, "result_not_found", "no backtest result with that id")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
