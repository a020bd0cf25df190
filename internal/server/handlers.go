package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kriterionquant/chainscope/internal/analytics"
	"github.com/kriterionquant/chainscope/internal/chain"
	"github.com/kriterionquant/chainscope/internal/notify"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

type snapshotSummary struct {
	ID          string    `json:"id"`
	Spot        float64   `json:"spot"`
	AsOf        time.Time `json:"as_of"`
	LoadedAt    time.Time `json:"loaded_at"`
	Contracts   int       `json:"contracts"`
	Expirations int       `json:"expirations"`
}

type expirationInfo struct {
	Date       string `json:"date"`
	DTE        int    `json:"dte"`
	Contracts  int    `json:"contracts"`
	TradingDay bool   `json:"trading_day"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, _, _, err := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"snapshot_loaded": err == nil,
	})
}

func (s *Server) handleUploadSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "upload rate exceeded, retry later"})
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	snap, err := chain.ParseCBOE(body, s.logger)
	if err != nil {
		s.logger.Warn("snapshot upload rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := s.store.Swap(snap)
	summary := s.summary(snap, id, time.Now())

	if s.hub != nil {
		s.broadcastUpdate(snap, summary)
	}
	go s.notifySnapshot(snap)

	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, id, loadedAt, err := s.store.Current()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.summary(snap, id, loadedAt))
}

func (s *Server) handleListExpirations(w http.ResponseWriter, r *http.Request) {
	snap, _, _, err := s.store.Current()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	infos := make([]expirationInfo, 0, len(snap.Expirations()))
	for _, exp := range snap.Expirations() {
		infos = append(infos, expirationInfo{
			Date:       exp.Format(dateLayout),
			DTE:        snap.DTE(exp),
			Contracts:  len(snap.ByExpiration(exp)),
			TradingDay: chain.IsTradingDay(exp),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGex(w http.ResponseWriter, r *http.Request) {
	snap, exp, ok := s.expirationFromRequest(w, r)
	if !ok {
		return
	}
	result := analytics.GammaExposure(snap, exp, s.params)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePositioning(w http.ResponseWriter, r *http.Request) {
	snap, exp, ok := s.expirationFromRequest(w, r)
	if !ok {
		return
	}
	result := analytics.Positioning(snap, exp, s.params)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMaxPain(w http.ResponseWriter, r *http.Request) {
	snap, exp, ok := s.expirationFromRequest(w, r)
	if !ok {
		return
	}
	result := analytics.MaxPain(snap, exp)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExpectedMove(w http.ResponseWriter, r *http.Request) {
	snap, exp, ok := s.expirationFromRequest(w, r)
	if !ok {
		return
	}
	result := analytics.ExpectedMove(snap, exp)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	snap, _, _, err := s.store.Current()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	surface, err := analytics.BuildSurface(snap, s.params)
	if err != nil {
		if errors.Is(err, analytics.ErrSurfaceUnavailable) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("surface build failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, surface)
}

// expirationFromRequest resolves the {date} URL parameter against the
// current snapshot, writing the error response itself on failure.
func (s *Server) expirationFromRequest(w http.ResponseWriter, r *http.Request) (*chain.Snapshot, time.Time, bool) {
	snap, _, _, err := s.store.Current()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return nil, time.Time{}, false
	}

	raw := chi.URLParam(r, "date")
	if _, err := time.Parse(dateLayout, raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid date, expected YYYY-MM-DD"})
		return nil, time.Time{}, false
	}

	for _, exp := range snap.Expirations() {
		if exp.Format(dateLayout) == raw {
			return snap, exp, true
		}
	}

	writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such expiration in snapshot: " + raw})
	return nil, time.Time{}, false
}

func (s *Server) summary(snap *chain.Snapshot, id string, loadedAt time.Time) snapshotSummary {
	return snapshotSummary{
		ID:          id,
		Spot:        snap.Spot(),
		AsOf:        snap.AsOf(),
		LoadedAt:    loadedAt,
		Contracts:   snap.Len(),
		Expirations: len(snap.Expirations()),
	}
}

// broadcastUpdate pushes the headline metrics of the default
// expiration to websocket subscribers after an upload.
func (s *Server) broadcastUpdate(snap *chain.Snapshot, summary snapshotSummary) {
	exp, ok := snap.DefaultExpiration()
	if !ok {
		return
	}

	update := struct {
		Snapshot    snapshotSummary              `json:"snapshot"`
		Expiration  string                       `json:"expiration"`
		NetGEX      float64                      `json:"net_gex"`
		SwitchPoint *float64                     `json:"switch_point"`
		Positioning analytics.PositioningResult  `json:"positioning"`
		MaxPain     analytics.MaxPainResult      `json:"max_pain"`
		Move        analytics.ExpectedMoveResult `json:"expected_move"`
	}{
		Snapshot:   summary,
		Expiration: exp.Format(dateLayout),
	}

	gex := analytics.GammaExposure(snap, exp, s.params)
	update.NetGEX = gex.NetGEX
	update.SwitchPoint = gex.SwitchPoint
	update.Positioning = analytics.Positioning(snap, exp, s.params)
	update.MaxPain = analytics.MaxPain(snap, exp)
	update.Move = analytics.ExpectedMove(snap, exp)

	payload, err := json.Marshal(update)
	if err != nil {
		s.logger.Warn("failed to marshal broadcast payload", zap.Error(err))
		return
	}
	s.hub.Broadcast(payload)
}

// notifySnapshot pushes the activation alert. Runs off the request
// path so a slow ntfy server cannot delay the upload response.
func (s *Server) notifySnapshot(snap *chain.Snapshot) {
	exp, ok := snap.DefaultExpiration()
	if !ok {
		return
	}

	gex := analytics.GammaExposure(snap, exp, s.params)
	pain := analytics.MaxPain(snap, exp)
	move := analytics.ExpectedMove(snap, exp)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ev := notify.SnapshotEvent{
		Spot:         snap.Spot(),
		AsOf:         snap.AsOf(),
		Contracts:    snap.Len(),
		Expiration:   exp.Format(dateLayout),
		NetGEX:       gex.NetGEX,
		SwitchPoint:  gex.SwitchPoint,
		MaxPain:      pain.Strike,
		ExpectedMove: move.ExpectedMove,
	}
	if err := s.notifier.SnapshotLoaded(ctx, ev); err != nil {
		s.logger.Warn("snapshot notification failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
