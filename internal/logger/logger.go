package logger

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/iurnickita/orderexport/internal/logger/config"
)

func NewZapLog(cfg config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	// преобразуем текстовый уровень логирования в zap.AtomicLevel
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	// создаём новую конфигурацию логера
	zapcfg := zap.NewProductionConfig()
	// устанавливаем уровень
	zapcfg.Level = lvl
	// создаём логер на основе конфигурации
	zl, err := zapcfg.Build()
	if err != nil {
		return nil, err
	}
	return zl, nil
}

// Пути, тело которых содержит секреты аккаунтов
const redactedPrefix = "/api/session"

// RequestLogMdlw - middleware-логер для входящих HTTP-запросов.
func RequestLogMdlw(zaplog *zap.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// request body
			var bodyBytes []byte
			if r.Body != nil {
				bodyBytes, _ = io.ReadAll(r.Body)
				r.Body.Close() //  must close
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}
			redacted := strings.HasPrefix(r.URL.Path, redactedPrefix)

			zaplog.Info("got incoming HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("body", bodyField(bodyBytes, redacted)),
			)

			wl := NewResponseWriterLogger(w)

			handlerStart := time.Now()
			h.ServeHTTP(wl, r)
			handlerDuration := time.Since(handlerStart)

			zaplog.Info("send HTTP response",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("code", strconv.Itoa(wl.statusCode)),
				zap.String("body", bodyField(wl.body, redacted)),
				zap.String("length", strconv.Itoa(wl.length)),
				zap.String("duration", handlerDuration.String()),
			)
		})
	}
}

func bodyField(body []byte, redacted bool) string {
	if redacted && len(body) > 0 {
		return "[redacted]"
	}
	return string(body)
}

type responseWriterLogger struct {
	http.ResponseWriter
	statusCode int
	length     int
	body       []byte
}

func NewResponseWriterLogger(w http.ResponseWriter) *responseWriterLogger {
	return &responseWriterLogger{w, http.StatusOK, 0, []byte{}}
}

func (wl *responseWriterLogger) WriteHeader(code int) {
	wl.statusCode = code
	wl.ResponseWriter.WriteHeader(code)
}

func (wl *responseWriterLogger) Write(b []byte) (n int, err error) {
	wl.body = b
	n, err = wl.ResponseWriter.Write(b)
	wl.length += n
	return
}
