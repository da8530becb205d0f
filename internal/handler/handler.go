package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/iurnickita/orderexport/internal/auth"
	"github.com/iurnickita/orderexport/internal/board"
	"github.com/iurnickita/orderexport/internal/handler/config"
	"github.com/iurnickita/orderexport/internal/logger"
	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/service"
)

// Serve обслуживает API до отмены ctx, затем плавно останавливает сервер.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, cfg, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zaplog.Info("server started", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		zaplog.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type handler struct {
	auth    auth.Auth
	service service.Service
	cfg     config.Config
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, cfg config.Config, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		cfg:     cfg,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(logger.RequestLogMdlw(h.zaplog))

	router.Post("/api/session", h.auth.Login)

	router.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/api/session", h.GetSession)
		r.Delete("/api/session", h.auth.Logout)
		r.Put("/api/session/target", h.PutTarget)
		r.Delete("/api/session/target", h.DeleteTarget)
		r.Put("/api/session/config", h.PutConfig)

		r.Get("/api/config/situations", h.GetSituations)
		r.Get("/api/config/stores", h.GetStores)

		r.Post("/api/orders/load", h.PostLoad)
		r.Post("/api/orders/validate", h.PostValidate)
		r.Get("/api/orders", h.GetOrders)
		r.Post("/api/orders/export", h.PostExport)

		r.Get("/api/exports", h.GetExports)
	})

	return router
}

// writeError переводит ошибки сервиса в коды ответа
func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientData), errors.Is(err, service.ErrEmptySelection):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNoSession):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, service.ErrNoTargetAccount):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	case errors.Is(err, service.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrPlatform):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.zaplog.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

// Сессия

type AccountJSON struct {
	Profile  string `json:"profile"`
	LoggedIn bool   `json:"loggedIn"`
}

type SessionJSONResponse struct {
	SessionID string             `json:"sessionId"`
	Source    AccountJSON        `json:"source"`
	Target    AccountJSON        `json:"target"`
	Config    model.ExportConfig `json:"config"`
	CreatedAt time.Time          `json:"createdAt"`
}

func newSessionResponse(session model.Session) SessionJSONResponse {
	// секреты наружу не отдаются
	return SessionJSONResponse{
		SessionID: session.ID,
		Source:    AccountJSON{Profile: session.Source.Profile, LoggedIn: !session.Source.Empty()},
		Target:    AccountJSON{Profile: session.Target.Profile, LoggedIn: !session.Target.Empty()},
		Config:    session.Config,
		CreatedAt: session.CreatedAt,
	}
}

func (h *handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionResponse(session))
}

type PutTargetJSONRequest struct {
	Profile string `json:"profile"`
	Secret  string `json:"secret"`
}

func (h *handler) PutTarget(w http.ResponseWriter, r *http.Request) {
	var request PutTargetJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	session, err := h.service.SetTargetAccount(r.Context(), sessionID, model.Account{Profile: request.Profile, Secret: request.Secret})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *handler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	session, err := h.service.ClearTargetAccount(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var exportConfig model.ExportConfig
	if err := json.NewDecoder(r.Body).Decode(&exportConfig); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	session, err := h.service.SaveExportConfig(r.Context(), sessionID, exportConfig)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// Справочники

func (h *handler) GetSituations(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	options, err := h.service.GetSituations(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, options)
}

func (h *handler) GetStores(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	options, err := h.service.GetStores(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, options)
}

// Заказы

type PostLoadJSONRequest struct {
	Since string `json:"since"`
}

func (h *handler) PostLoad(w http.ResponseWriter, r *http.Request) {
	var request PostLoadJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	since, err := time.Parse(time.DateOnly, request.Since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	snapshot, err := h.service.LoadOrders(r.Context(), sessionID, since)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newBoardResponse(snapshot))
}

func (h *handler) PostValidate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	if err := h.service.ValidateOrders(r.Context(), sessionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type BoardJSONResponse struct {
	Generation       uint64        `json:"generation"`
	IsValidatingData bool          `json:"isValidatingData"`
	IsSubmitting     bool          `json:"isSubmitting"`
	LastError        string        `json:"lastError,omitempty"`
	LoadedAt         time.Time     `json:"loadedAt"`
	Orders           []model.Order `json:"orders"`
}

func newBoardResponse(snapshot board.Snapshot) BoardJSONResponse {
	orders := snapshot.Orders
	if orders == nil {
		orders = []model.Order{}
	}
	return BoardJSONResponse{
		Generation:       snapshot.Generation,
		IsValidatingData: snapshot.IsValidatingData,
		IsSubmitting:     snapshot.IsSubmitting,
		LastError:        snapshot.LastError,
		LoadedAt:         snapshot.LoadedAt,
		Orders:           orders,
	}
}

func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	snapshot, err := h.service.GetOrders(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newBoardResponse(snapshot))
}

type PostExportJSONRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *handler) PostExport(w http.ResponseWriter, r *http.Request) {
	var request PostExportJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	if err := h.service.ExportOrders(r.Context(), sessionID, request.IDs); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Журнал экспорта

func (h *handler) GetExports(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(auth.HeaderSessionIDKey)

	records, err := h.service.GetExports(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}
