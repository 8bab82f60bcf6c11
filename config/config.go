// Package config loads the runtime's tunable constants via viper:
// concurrency and recursion caps, BLOCK timing, the remote parameter
// timeout, and the acknowledge-on-push policy. Values layer defaults,
// then an optional config file, then environment variables (CSP_PROC_
// prefix).
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the daemon and interpreter consult.
type Config struct {
	MaxConcurrent      int
	MaxRecursionDepth  int
	ReservedProcSlots  int
	MaxBlockTimeout    time.Duration
	MinBlockPeriod     time.Duration
	ParamRemoteTimeout time.Duration
	ParamAckOnPush     bool
	FloatEpsilon       float64
	TransportPort      int
}

// Defaults returns the stock constants procd ships with.
func Defaults() Config {
	return Config{
		MaxConcurrent:      16,
		MaxRecursionDepth:  1000,
		ReservedProcSlots:  0,
		MaxBlockTimeout:    5_000_000 * time.Millisecond,
		MinBlockPeriod:     250 * time.Millisecond,
		ParamRemoteTimeout: 1000 * time.Millisecond,
		ParamAckOnPush:     true,
		FloatEpsilon:       1e-6,
		TransportPort:      14,
	}
}

// Load reads configuration from (in increasing priority) the built-in
// defaults, an optional config file at path (ignored if empty or
// missing), and CSP_PROC_-prefixed environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("max_concurrent", d.MaxConcurrent)
	v.SetDefault("max_recursion_depth", d.MaxRecursionDepth)
	v.SetDefault("reserved_proc_slots", d.ReservedProcSlots)
	v.SetDefault("max_block_timeout_ms", d.MaxBlockTimeout.Milliseconds())
	v.SetDefault("min_block_period_ms", d.MinBlockPeriod.Milliseconds())
	v.SetDefault("param_remote_timeout_ms", d.ParamRemoteTimeout.Milliseconds())
	v.SetDefault("param_ack_on_push", d.ParamAckOnPush)
	v.SetDefault("float_epsilon", d.FloatEpsilon)
	v.SetDefault("transport_port", d.TransportPort)

	v.SetEnvPrefix("csp_proc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	return Config{
		MaxConcurrent:      v.GetInt("max_concurrent"),
		MaxRecursionDepth:  v.GetInt("max_recursion_depth"),
		ReservedProcSlots:  v.GetInt("reserved_proc_slots"),
		MaxBlockTimeout:    time.Duration(v.GetInt64("max_block_timeout_ms")) * time.Millisecond,
		MinBlockPeriod:     time.Duration(v.GetInt64("min_block_period_ms")) * time.Millisecond,
		ParamRemoteTimeout: time.Duration(v.GetInt64("param_remote_timeout_ms")) * time.Millisecond,
		ParamAckOnPush:     v.GetBool("param_ack_on_push"),
		FloatEpsilon:       v.GetFloat64("float_epsilon"),
		TransportPort:      v.GetInt("transport_port"),
	}, nil
}
