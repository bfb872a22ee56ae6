package bsrvtest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [bsrv.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets the required [bsrv.BaseEnvironment] env vars to test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BB_SERVICE_NAME: "test"
//   - BB_HEALTH_CHECK_PATH: "/health"
//   - BB_OTEL_EXPORTER: "none"
//   - BB_TEMP_DIR: t.TempDir()
//
// Use the returned [Env] to override individual values:
//
//	bsrvtest.SetBaseEnv(t, 18085).MemoryThreshold(1024).ValueCountLimit(2)
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BB_PORT", strconv.Itoa(port))
	t.Setenv("BB_SERVICE_NAME", "test")
	t.Setenv("BB_HEALTH_CHECK_PATH", "/health")
	t.Setenv("BB_OTEL_EXPORTER", "none")
	t.Setenv("BB_TEMP_DIR", t.TempDir())
	return &Env{t: t}
}

// ServiceName overrides BB_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BB_SERVICE_NAME", name)
	return e
}

// HealthCheckPath overrides BB_HEALTH_CHECK_PATH.
func (e *Env) HealthCheckPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BB_HEALTH_CHECK_PATH", path)
	return e
}

// MemoryThreshold overrides BB_MEMORY_THRESHOLD.
func (e *Env) MemoryThreshold(n int) *Env {
	e.t.Helper()
	e.t.Setenv("BB_MEMORY_THRESHOLD", strconv.Itoa(n))
	return e
}

// BufferLimit overrides BB_BUFFER_LIMIT.
func (e *Env) BufferLimit(n int64) *Env {
	e.t.Helper()
	e.t.Setenv("BB_BUFFER_LIMIT", strconv.FormatInt(n, 10))
	return e
}

// ValueCountLimit overrides BB_VALUE_COUNT_LIMIT.
func (e *Env) ValueCountLimit(n int) *Env {
	e.t.Helper()
	e.t.Setenv("BB_VALUE_COUNT_LIMIT", strconv.Itoa(n))
	return e
}
