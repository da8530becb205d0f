package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetConfig(t *testing.T) {
	t.Setenv("ORDEREXPORT_TOKEN_KEY", "k")
	t.Setenv("ORDEREXPORT_SERVER_ADDR", ":9090")
	t.Setenv("ORDEREXPORT_CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("ORDEREXPORT_PLATFORM_TIMEOUT", "5s")
	t.Setenv("ORDEREXPORT_MATCH_KEY", "code")

	cfg, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Handler.ServerAddr)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Handler.AllowedOrigins)
	require.Equal(t, 5*time.Second, cfg.Service.Platform.Timeout)
	require.Equal(t, "code", cfg.Service.MatchKey)
	require.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "info", cfg.Logger.LogLevel)
	require.Empty(t, cfg.Store.DBDsn)
}

func TestGetConfigRequiresTokenKey(t *testing.T) {
	t.Setenv("ORDEREXPORT_TOKEN_KEY", "")

	_, err := GetConfig()
	require.Error(t, err)
}
