// Package config provides configuration helpers for go-facerecog commands.
package config

import (
	"net/url"
	"os"
	"path/filepath"
)

// Default service configuration.
const (
	DefaultServiceURL = "http://localhost:8080"
	DefaultListenAddr = ":8080"
	DefaultDataDir    = "data"
)

// Environment variables.
const (
	EnvServiceURL = "FACEREC_SERVICE_URL"
	EnvListenAddr = "FACEREC_LISTEN_ADDR"
	EnvDataDir    = "FACEREC_DATA_DIR"
)

// ServiceURL returns the recognition service base URL from
// FACEREC_SERVICE_URL. Falls back to DefaultServiceURL if unset or not an
// absolute http(s) URL.
func ServiceURL() string {
	raw := os.Getenv(EnvServiceURL)
	if raw == "" {
		return DefaultServiceURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return DefaultServiceURL
	}
	return raw
}

// ListenAddr returns the service listen address from FACEREC_LISTEN_ADDR.
func ListenAddr() string {
	if addr := os.Getenv(EnvListenAddr); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

// DataDir returns the service data directory from FACEREC_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	return DefaultDataDir
}

// DataPath joins name onto the data directory.
func DataPath(name string) string {
	return filepath.Join(DataDir(), name)
}
