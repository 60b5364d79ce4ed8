package config

import (
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// reader parses individual keys with warn-and-default semantics: an unset
// key keeps the default silently, an invalid one keeps it with a warning.
type reader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func (r reader) raw(key string) (string, bool) {
	if !r.v.IsSet(key) {
		return "", false
	}
	s := strings.TrimSpace(r.v.GetString(key))
	return s, s != ""
}

func (r reader) warn(key, value string, def any) {
	r.logger.Warn("invalid config value, using default",
		"key", key,
		"env", EnvPrefix+"_"+strings.ToUpper(key),
		"value", value,
		"default", def,
	)
}

func (r reader) str(key, def string) string {
	if s, ok := r.raw(key); ok {
		return s
	}
	return def
}

func (r reader) boolean(key string, def bool) bool {
	s, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		r.warn(key, s, def)
		return def
	}
	return b
}

func (r reader) integer(key string, def, lo, hi int) int {
	s, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		r.warn(key, s, def)
		return def
	}
	return n
}

func (r reader) float(key string, def, lo, hi float64) float64 {
	s, ok := r.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < lo || f > hi {
		r.warn(key, s, def)
		return def
	}
	return f
}

// duration accepts Go duration strings ("16ms", "30s").
func (r reader) duration(key string, def, lo, hi time.Duration) time.Duration {
	s, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < lo || d > hi {
		r.warn(key, s, def.String())
		return def
	}
	return d
}

func (r reader) choice(key, def string, allowed ...string) string {
	s, ok := r.raw(key)
	if !ok {
		return def
	}
	s = strings.ToLower(s)
	if !slices.Contains(allowed, s) {
		r.warn(key, s, def)
		return def
	}
	return s
}

func (r reader) level(key string, def slog.Level) slog.Level {
	s, ok := r.raw(key)
	if !ok {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		r.warn(key, s, def.String())
		return def
	}
	return l
}
