package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/store"
)

// handlers holds the store dependency every endpoint reads through, plus the
// in-memory backtest result registry. Grounded on the teacher's Handlers
// struct (internal/interfaces/http/handlers/handlers.go), generalized from a
// dependency-free mock to one backed by the confluence store.
type handlers struct {
	store     store.Store
	backtests *backtestRegistry
}

func newHandlers(s store.Store, bt *backtestRegistry) *handlers {
	return &handlers{store: s, backtests: bt}
}

func (h *handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (h *handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeNotFound(w, r, "endpoint_not_found", "the requested endpoint does not exist")
}

// parseTimeframe reads ?timeframe=, defaulting to 1h, and rejects unknown values.
func parseTimeframe(r *http.Request) (domain.Timeframe, bool) {
	raw := r.URL.Query().Get("timeframe")
	if raw == "" {
		return domain.TF1h, true
	}
	tf := domain.Timeframe(raw)
	return tf, tf.Valid()
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func symbolFromPath(r *http.Request) domain.SymbolId {
	return domain.SymbolId(strings.ToUpper(mux.Vars(r)["symbol"]))
}

func (h *handlers) Prices(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFromPath(r)
	tf, ok := parseTimeframe(r)
	if !ok {
		writeBadRequest(w, r, "invalid_timeframe", "unsupported timeframe")
		return
	}
	limit := parseLimit(r, 200)

	candles, err := h.store.Candles().Latest(r.Context(), symbol, tf, time.Now(), limit)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol, "timeframe": tf, "count": len(candles), "data": candles,
	})
}

// scoreString renders a score as a JSON string rather than a float so
// clients never lose precision to a language's default float formatting
// (spec §6.1).
func scoreString(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// layerScoresString converts a layer->float64 map to layer->string, for
// composite responses that carry one score per layer.
func layerScoresString(scores map[domain.Layer]float64) map[domain.Layer]string {
	out := make(map[domain.Layer]string, len(scores))
	for layer, v := range scores {
		out[layer] = scoreString(v)
	}
	return out
}

// layerScoreResponse wraps a score row with its staleness, so callers always
// know whether they're looking at a live or degraded reading (spec §7).
func layerScoreResponse(row *domain.LayerScoreRow, asOf time.Time, window time.Duration) map[string]interface{} {
	if row == nil {
		return map[string]interface{}{"available": false}
	}
	return map[string]interface{}{
		"available":  true,
		"timestamp":  row.Timestamp,
		"score":      scoreString(row.Score),
		"degraded":   row.Degraded || asOf.Sub(row.Timestamp) > window,
		"indicators": row.Indicators,
	}
}

func (h *handlers) TASignal(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFromPath(r)
	tf, ok := parseTimeframe(r)
	if !ok {
		writeBadRequest(w, r, "invalid_timeframe", "unsupported timeframe")
		return
	}
	now := time.Now()
	row, err := h.store.LayerScores().Newest(r.Context(), domain.LayerTA, &symbol, &tf, now)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layerScoreResponse(row, now, 2*tf.Duration()))
}

func (h *handlers) OnChainSignal(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFromPath(r)
	now := time.Now()
	row, err := h.store.LayerScores().Newest(r.Context(), domain.LayerOnChain, &symbol, nil, now)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layerScoreResponse(row, now, 24*time.Hour))
}

func (h *handlers) SentimentSignal(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFromPath(r)
	now := time.Now()
	row, err := h.store.LayerScores().Newest(r.Context(), domain.LayerSentiment, &symbol, nil, now)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layerScoreResponse(row, now, 24*time.Hour))
}

func (h *handlers) PoliticalSignal(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	row, err := h.store.LayerScores().Newest(r.Context(), domain.LayerPolitical, nil, nil, now)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layerScoreResponse(row, now, 2*time.Hour))
}

func (h *handlers) MacroSignal(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	row, err := h.store.LayerScores().Newest(r.Context(), domain.LayerMacro, nil, nil, now)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layerScoreResponse(row, now, 2*time.Hour))
}

func (h *handlers) CelestialCurrent(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.Celestial().Get(r.Context(), time.Now())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if state == nil {
		writeDegraded(w, r, "no celestial snapshot computed for today yet")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *handlers) NumerologyCurrent(w http.ResponseWriter, r *http.Request) {
	day, err := h.store.Numerology().Get(r.Context(), time.Now())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if day == nil {
		writeDegraded(w, r, "no numerology snapshot computed for today yet")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *handlers) Confluence(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFromPath(r)
	tf, ok := parseTimeframe(r)
	if !ok {
		writeBadRequest(w, r, "invalid_timeframe", "unsupported timeframe")
		return
	}
	composite, err := h.store.Composites().Latest(r.Context(), symbol, tf, time.Now())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if composite == nil {
		writeNotFound(w, r, "no_composite", "no composite row computed yet for this symbol/timeframe")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":          composite.Symbol,
		"timeframe":       composite.Timeframe,
		"timestamp":       composite.Timestamp,
		"layer_scores":    layerScoresString(composite.LayerScores),
		"weights_used":    composite.WeightsUsed,
		"composite":       scoreString(composite.Composite),
		"strength":        composite.Strength,
		"aligned_layers":  composite.AlignedLayers,
		"alignment_count": len(composite.AlignedLayers),
		"stale_layers":    composite.StaleLayers,
	})
}
