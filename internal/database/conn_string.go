package database

import (
	"fmt"
	"net/url"

	"github.com/aios-edge/fleet-realtime/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
// appName, when set, is reported to the server as application_name.
func BuildConnString(cfg config.DBConfig, appName string) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
	if appName != "" {
		connStr += "&application_name=" + url.QueryEscape(appName)
	}
	return connStr
}
