package config

import (
	"time"

	platformConfig "github.com/iurnickita/orderexport/internal/service/platformclient/config"
)

type Config struct {
	Platform       platformConfig.Config
	MatchKey       string
	LookupCacheTTL time.Duration
}
