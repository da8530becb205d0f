package config

import "time"

type Config struct {
	TokenKey string
	TokenTTL time.Duration
	// Secure выставляет флаг Secure у cookie сессии
	Secure bool
}
