// Package config reads engine, store, and server parameters from
// environment variables, following the crunch Rust source's
// "CRUNCH_<COMPONENT>_<VAR>" convention, translated to "KILN_<COMPONENT>_<VAR>".
//
// A .env file at the working directory is loaded first (if present) via
// godotenv, so local development doesn't require exporting every variable
// by hand.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() {
	// Missing .env is normal in production; the load error is ignored.
	_ = godotenv.Load()
}

// FromEnvValue parses a raw environment variable string into T.
type FromEnvValue interface {
	bool | int | uint64 | string | time.Duration
}

// LookupEnv reads KILN_<component>_<variable> and parses it as T, falling
// back to def and logging a warning if the value is present but malformed.
// Unlike the original Rust source's parse_env (which panics via abort! on a
// bad value), a malformed override here is logged and ignored: a long-running
// server should fail its next health check, not crash at startup over a typo.
func LookupEnv[T FromEnvValue](logger *zap.SugaredLogger, component, variable string, def T) T {
	name := "KILN_" + strings.ToUpper(component) + "_" + strings.ToUpper(variable)
	return lookupEnvNamed(logger, name, def)
}

// LookupTopLevelEnv reads KILN_<variable> (no component segment), for
// settings that aren't scoped to memtable/store/server, such as
// KILN_DATA_DIR. Composing the name through LookupEnv with an empty
// component would insert a stray separator ("KILN__DATA_DIR"), which
// never matches the documented variable name.
func LookupTopLevelEnv[T FromEnvValue](logger *zap.SugaredLogger, variable string, def T) T {
	name := "KILN_" + strings.ToUpper(variable)
	return lookupEnvNamed(logger, name, def)
}

func lookupEnvNamed[T FromEnvValue](logger *zap.SugaredLogger, name string, def T) T {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}

	var (
		value T
		err   error
	)
	switch any(def).(type) {
	case bool:
		var v bool
		v, err = strconv.ParseBool(raw)
		value = any(v).(T)
	case int:
		var v int
		v, err = strconv.Atoi(raw)
		value = any(v).(T)
	case uint64:
		var v uint64
		v, err = strconv.ParseUint(raw, 10, 64)
		value = any(v).(T)
	case time.Duration:
		var v time.Duration
		v, err = time.ParseDuration(raw)
		if err != nil {
			// Also accept a bare integer as seconds, matching the original
			// source's "compaction_interval_seconds: u64" shape.
			var seconds int64
			if seconds, err = strconv.ParseInt(raw, 10, 64); err == nil {
				v = time.Duration(seconds) * time.Second
			}
		}
		value = any(v).(T)
	case string:
		value = any(raw).(T)
	}

	if err != nil {
		if logger == nil {
			logger = zap.NewNop().Sugar()
		}
		logger.Warnw("ignoring malformed environment variable, using default",
			"name", name, "value", raw, "error", err)
		return def
	}
	return value
}

// EngineConfig holds the parameters consumed by engine.New and store.Open.
type EngineConfig struct {
	MemtableCapacity           int
	CompactionEnabled          bool
	CompactionIntervalSeconds  uint64
	DataDir                    string
}

// DefaultEngineConfig mirrors MemtableArgs/StoreArgs' Default impls in the
// original Rust source: capacity 1024, compaction on, interval 600s.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MemtableCapacity:          1024,
		CompactionEnabled:         true,
		CompactionIntervalSeconds: 600,
		DataDir:                   "./data",
	}
}

// LoadEngineConfig overlays environment variables onto DefaultEngineConfig.
func LoadEngineConfig(logger *zap.SugaredLogger) EngineConfig {
	def := DefaultEngineConfig()
	return EngineConfig{
		MemtableCapacity:          LookupEnv(logger, "memtable", "capacity", def.MemtableCapacity),
		CompactionEnabled:         LookupEnv(logger, "store", "compaction_enabled", def.CompactionEnabled),
		CompactionIntervalSeconds: LookupEnv(logger, "store", "compaction_interval_seconds", def.CompactionIntervalSeconds),
		DataDir:                   LookupTopLevelEnv(logger, "data_dir", def.DataDir),
	}
}

// ServerPort returns the TCP port the front-end should bind, honoring
// KILN_SERVER_PORT and otherwise defaulting to 6210 (the original source's
// default CrunchKV port).
func ServerPort(logger *zap.SugaredLogger) int {
	return LookupEnv(logger, "server", "port", 6210)
}
