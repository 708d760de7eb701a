package database

import (
	"fmt"
	"net/url"

	"github.com/quantdegen/swarm-stream/internal/config"
)

// appName tags recorder connections in pg_stat_activity.
const appName = "swarm-recorder"

// BuildConnString builds a PostgreSQL connection URL from config.
// Credentials are URL-escaped so passwords with special characters
// survive the round trip through pgxpool's parser.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", appName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
