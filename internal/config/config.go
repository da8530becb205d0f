package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	authConfig "github.com/iurnickita/orderexport/internal/auth/config"
	handlerConfig "github.com/iurnickita/orderexport/internal/handler/config"
	loggerConfig "github.com/iurnickita/orderexport/internal/logger/config"
	serviceConfig "github.com/iurnickita/orderexport/internal/service/config"
	platformConfig "github.com/iurnickita/orderexport/internal/service/platformclient/config"
	storeConfig "github.com/iurnickita/orderexport/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Auth    authConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
}

const envPrefix = "ORDEREXPORT"

// GetConfig читает .env (если есть) и переменные окружения ORDEREXPORT_*.
func GetConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("cors_allowed_origins", "http://localhost:3000")
	v.SetDefault("token_key", "")
	v.SetDefault("token_ttl", 12*time.Hour)
	v.SetDefault("cookie_secure", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("platform_addr", "https://app.bling.com.br")
	v.SetDefault("platform_timeout", 30*time.Second)
	v.SetDefault("match_key", "id")
	v.SetDefault("lookup_cache_ttl", 5*time.Minute)
	v.SetDefault("database_dsn", "")

	return newConfig(v)
}

func newConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Handler: handlerConfig.Config{
			ServerAddr:     v.GetString("server_addr"),
			AllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		},
		Auth: authConfig.Config{
			TokenKey: v.GetString("token_key"),
			TokenTTL: v.GetDuration("token_ttl"),
			Secure:   v.GetBool("cookie_secure"),
		},
		Service: serviceConfig.Config{
			Platform: platformConfig.Config{
				Addr:    v.GetString("platform_addr"),
				Timeout: v.GetDuration("platform_timeout"),
			},
			MatchKey:       v.GetString("match_key"),
			LookupCacheTTL: v.GetDuration("lookup_cache_ttl"),
		},
		Store: storeConfig.Config{
			DBDsn: v.GetString("database_dsn"),
		},
		Logger: loggerConfig.Config{
			LogLevel: v.GetString("log_level"),
		},
	}

	if cfg.Auth.TokenKey == "" {
		return Config{}, errors.New(envPrefix + "_TOKEN_KEY is required")
	}
	return cfg, nil
}

func splitList(value string) []string {
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
