package analysis

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live_analysis/internal/domain"
	"live_analysis/internal/httpresponse"
	"live_analysis/internal/report"
	analysisUC "live_analysis/internal/usecase/analysis"
	"live_analysis/internal/utils"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Service is the part of the coordinator the HTTP layer drives.
type Service interface {
	Start(ctx context.Context, profile domain.EngineProfile) error
	Stop() error
	PositionChanged(pos domain.Position)
	GameReplaced(ctx context.Context, pos domain.Position)
	SettingsChanged(settings domain.AnalysisSettings)
	Settings() domain.AnalysisSettings
	CurrentResult(p domain.Perspective) (domain.AnalysisResult, bool)
	Snapshot(p domain.Perspective) analysisUC.Snapshot
	Logs() []domain.LogEntry
	History() []domain.HistoryPoint
	ClearHistory(ctx context.Context) error
	Subscribe() (<-chan struct{}, func())
}

type Archive interface {
	GetAnalysis(ctx context.Context, queryID string) (domain.AnalysisRecord, error)
}

type AnalysisHandler struct {
	log      *zap.SugaredLogger
	svc      Service
	archive  Archive
	profile  domain.EngineProfile
	metrics  http.Handler
	upgrader websocket.Upgrader
}

// NewAnalysisHandler wires the routes; archive and metrics may be nil.
func NewAnalysisHandler(log *zap.SugaredLogger, svc Service, profile domain.EngineProfile, archive Archive, metrics http.Handler) *AnalysisHandler {
	return &AnalysisHandler{
		log:     log,
		svc:     svc,
		archive: archive,
		profile: profile,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *AnalysisHandler) Router(r chi.Router) {
	r.Post("/engine/start", h.HandleStart)
	r.Post("/engine/stop", h.HandleStop)
	r.Post("/position", h.HandlePosition)
	r.Post("/game", h.HandleGame)
	r.Get("/settings", h.HandleGetSettings)
	r.Put("/settings", h.HandleSettings)
	r.Get("/analysis", h.HandleAnalysis)
	r.Get("/analysis/stream", h.HandleStream)
	r.Get("/status", h.HandleStatus)
	r.Get("/logs", h.HandleLogs)
	r.Get("/history", h.HandleHistory)
	r.Delete("/history", h.HandleClearHistory)
	r.Get("/history.pdf", h.HandleHistoryPDF)
	r.Get("/archive/{id}", h.HandleArchive)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
}

// HandleStart starts the engine with the body profile, or the configured one when the body is empty.
func (h *AnalysisHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	profile := h.profile
	if err := utils.DecodeJSONRequest(r, &profile); err != nil && !errors.Is(err, io.EOF) {
		h.log.Warnw("bad engine profile", "error", err)
		httpresponse.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Start(r.Context(), profile); err != nil {
		h.log.Errorw("failed to start engine", "error", err)
		httpresponse.WriteDomainError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, h.svc.Snapshot(""))
}

func (h *AnalysisHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Stop(); err != nil {
		h.log.Warnw("failed to stop engine", "error", err)
		httpresponse.WriteDomainError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, h.svc.Snapshot(""))
}

func (h *AnalysisHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	pos, ok := h.decodePosition(w, r)
	if !ok {
		return
	}
	h.svc.PositionChanged(pos)
	w.WriteHeader(http.StatusAccepted)
}

func (h *AnalysisHandler) HandleGame(w http.ResponseWriter, r *http.Request) {
	pos, ok := h.decodePosition(w, r)
	if !ok {
		return
	}
	h.svc.GameReplaced(r.Context(), pos)
	w.WriteHeader(http.StatusAccepted)
}

func (h *AnalysisHandler) decodePosition(w http.ResponseWriter, r *http.Request) (domain.Position, bool) {
	var pos domain.Position
	if err := utils.DecodeJSONRequest(r, &pos); err != nil {
		httpresponse.WriteError(w, http.StatusBadRequest, err.Error())
		return domain.Position{}, false
	}
	if err := pos.Validate(); err != nil {
		httpresponse.WriteDomainError(w, err)
		return domain.Position{}, false
	}
	return pos, true
}

func (h *AnalysisHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, h.svc.Settings())
}

func (h *AnalysisHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.AnalysisSettings
	if err := utils.DecodeJSONRequest(r, &settings); err != nil {
		httpresponse.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := settings.Validate(); err != nil {
		httpresponse.WriteDomainError(w, err)
		return
	}
	h.svc.SettingsChanged(settings)
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, h.svc.Settings())
}

func (h *AnalysisHandler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := perspectiveParam(r)
	if !ok {
		httpresponse.WriteError(w, http.StatusBadRequest, "perspective must be black or current")
		return
	}
	result, found := h.svc.CurrentResult(p)
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, result)
}

func (h *AnalysisHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Snapshot("")
	snap.Result = nil
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, snap)
}

func (h *AnalysisHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, h.svc.Logs())
}

func (h *AnalysisHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, h.svc.History())
}

// HandleClearHistory drops the current game's history, archive included.
func (h *AnalysisHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearHistory(r.Context()); err != nil {
		h.log.Errorw("failed to clear history", "error", err)
		httpresponse.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnalysisHandler) HandleHistoryPDF(w http.ResponseWriter, r *http.Request) {
	title := "Evaluation history"
	if game := r.URL.Query().Get("title"); game != "" {
		title = game
	}

	var buf bytes.Buffer
	if err := report.WriteHistoryPDF(&buf, title, h.svc.History()); err != nil {
		h.log.Errorw("failed to render history pdf", "error", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="history.pdf"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *AnalysisHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httpresponse.WriteError(w, http.StatusNotFound, "archive is disabled")
		return
	}
	rec, err := h.archive.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.log.Debugw("archive lookup failed", "id", chi.URLParam(r, "id"), "error", err)
		httpresponse.WriteDomainError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, rec)
}

// HandleStream pushes a snapshot on connect and after every change until the client goes away.
func (h *AnalysisHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	p, ok := perspectiveParam(r)
	if !ok {
		httpresponse.WriteError(w, http.StatusBadRequest, "perspective must be black or current")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()

	// reads only to notice the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if !h.writeSnapshot(conn, p) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-updates:
			if !h.writeSnapshot(conn, p) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *AnalysisHandler) writeSnapshot(conn *websocket.Conn, p domain.Perspective) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(h.svc.Snapshot(p)); err != nil {
		h.log.Debugw("websocket write failed", "error", err)
		return false
	}
	return true
}

func perspectiveParam(r *http.Request) (domain.Perspective, bool) {
	raw := r.URL.Query().Get("perspective")
	if raw == "" {
		return "", true
	}
	return domain.ParsePerspective(raw)
}
