// Package config provides environment configuration helpers for go-cameo commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Getenv returns the value of the named environment variable,
// falling back to def when unset or empty.
func Getenv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// GetenvBool parses the named variable as a boolean.
// Unset, empty, or unparseable values return def.
func GetenvBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetenvDuration parses the named variable as a time.Duration ("250ms", "1s").
// Unset, empty, or unparseable values return def.
func GetenvDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// GetenvFloat parses the named variable as a float64.
// Unset, empty, or unparseable values return def.
func GetenvFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
