package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/orderexport/internal/auth/config"
	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/service"
	"github.com/iurnickita/orderexport/internal/token"
)

// Auth - вход по аккаунту-источнику и проверка cookie сессии.
type Auth interface {
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Middleware(h http.Handler) http.Handler
}

const (
	HeaderSessionIDKey = "X-Session-Id"
	cookieSessionToken = "orderexportSessionToken"
)

var ErrNoSessionCookie = errors.New("session cookie is missing")

type auth struct {
	cfg     config.Config
	token   *token.Token
	service service.Service
	zaplog  *zap.Logger
}

func NewAuth(cfg config.Config, service service.Service, zaplog *zap.Logger) Auth {
	return &auth{
		cfg:     cfg,
		token:   token.New(cfg.TokenKey, cfg.TokenTTL),
		service: service,
		zaplog:  zaplog,
	}
}

type LoginJSONRequest struct {
	Profile string `json:"profile"`
	Secret  string `json:"secret"`
}

type LoginJSONResponse struct {
	SessionID string `json:"sessionId"`
	Profile   string `json:"profile"`
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var request LoginJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := a.service.OpenSession(r.Context(), model.Account{Profile: request.Profile, Secret: request.Secret})
	if err != nil {
		switch err {
		case service.ErrInsufficientData:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	tokenString, err := a.token.BuildJWTString(session.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.setCookie(w, tokenString, a.cfg.TokenTTL)

	responseJSON, err := json.Marshal(LoginJSONResponse{SessionID: session.ID, Profile: session.Source.Profile})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(responseJSON)
}

func (a *auth) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionIDKey)

	err := a.service.CloseSession(r.Context(), sessionID)
	if err != nil && !errors.Is(err, service.ErrNoSession) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// удаляем cookie
	a.setCookie(w, "", -time.Second)
	w.WriteHeader(http.StatusNoContent)
}

func (a *auth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// получение id сессии
		sessionID, err := a.getSessionID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// записываем
		r.Header.Set(HeaderSessionIDKey, sessionID)

		// передаём управление хендлеру
		h.ServeHTTP(w, r)
	})
}

func (a *auth) getSessionID(r *http.Request) (string, error) {
	// заголовок от клиента не принимаем
	r.Header.Del(HeaderSessionIDKey)

	tokenCookie, err := r.Cookie(cookieSessionToken)
	if err != nil {
		return "", ErrNoSessionCookie
	}
	sessionID, err := a.token.GetSessionID(tokenCookie.Value)
	if err != nil {
		a.zaplog.Debug("session token rejected", zap.Error(err))
		return "", err
	}
	return sessionID, nil
}

func (a *auth) setCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     cookieSessionToken,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		cookie.MaxAge = -1
	case ttl > 0:
		cookie.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, cookie)
}
