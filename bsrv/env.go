package bsrv

import (
	"time"

	"github.com/advdv/bbody"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	healthCheckPath() string
	logLevel() zapcore.Level
	otelExporter() string
	readHeaderTimeout() time.Duration
	responseBufferLimit() int
	bodyOptions() bbody.Options
}

// BaseEnvironment contains the environment variables every bbody service reads. Embed this in your custom
// environment struct. Limits of zero or less disable the limit.
type BaseEnvironment struct {
	Port              int           `env:"BB_PORT,required"`
	ServiceName       string        `env:"BB_SERVICE_NAME,required"`
	HealthCheckPath   string        `env:"BB_HEALTH_CHECK_PATH" envDefault:"/health"`
	LogLevel          zapcore.Level `env:"BB_LOG_LEVEL" envDefault:"info"`
	OtelExporter      string        `env:"BB_OTEL_EXPORTER" envDefault:"stdout"`
	ReadHeaderTimeout time.Duration `env:"BB_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// ResponseBufferLimit caps the spooled response body of a single request.
	ResponseBufferLimit int `env:"BB_RESPONSE_BUFFER_LIMIT" envDefault:"-1"`

	MemoryThreshold          int    `env:"BB_MEMORY_THRESHOLD" envDefault:"65536"`
	BufferLimit              int64  `env:"BB_BUFFER_LIMIT" envDefault:"134217728"`
	TempDir                  string `env:"BB_TEMP_DIR"`
	BoundaryLengthLimit      int    `env:"BB_BOUNDARY_LENGTH_LIMIT" envDefault:"128"`
	HeadersCountLimit        int    `env:"BB_HEADERS_COUNT_LIMIT" envDefault:"16"`
	HeadersLengthLimit       int    `env:"BB_HEADERS_LENGTH_LIMIT" envDefault:"16384"`
	MultipartBodyLengthLimit int64  `env:"BB_MULTIPART_BODY_LENGTH_LIMIT" envDefault:"134217728"`
	ValueCountLimit          int    `env:"BB_VALUE_COUNT_LIMIT" envDefault:"1024"`
	KeyLengthLimit           int    `env:"BB_KEY_LENGTH_LIMIT" envDefault:"2048"`
	ValueLengthLimit         int    `env:"BB_VALUE_LENGTH_LIMIT" envDefault:"4194304"`
}

func (e BaseEnvironment) port() int {
	return e.Port
}

func (e BaseEnvironment) serviceName() string {
	return e.ServiceName
}

func (e BaseEnvironment) healthCheckPath() string {
	return e.HealthCheckPath
}

func (e BaseEnvironment) logLevel() zapcore.Level {
	return e.LogLevel
}

func (e BaseEnvironment) otelExporter() string {
	return e.OtelExporter
}

func (e BaseEnvironment) readHeaderTimeout() time.Duration {
	return e.ReadHeaderTimeout
}

func (e BaseEnvironment) responseBufferLimit() int {
	return e.ResponseBufferLimit
}

func (e BaseEnvironment) bodyOptions() bbody.Options {
	opts := bbody.Options{
		MemoryThreshold:          e.MemoryThreshold,
		BufferLimit:              e.BufferLimit,
		BoundaryLengthLimit:      e.BoundaryLengthLimit,
		HeadersCountLimit:        e.HeadersCountLimit,
		HeadersLengthLimit:       e.HeadersLengthLimit,
		MultipartBodyLengthLimit: e.MultipartBodyLengthLimit,
		ValueCountLimit:          e.ValueCountLimit,
		KeyLengthLimit:           e.KeyLengthLimit,
		ValueLengthLimit:         e.ValueLengthLimit,
	}

	if dir := e.TempDir; dir != "" {
		opts.TempDir = func() (string, error) { return dir, nil }
	}

	return opts
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}

// BodyOptions returns the request body limits configured by the environment.
func BodyOptions(e Environment) bbody.Options {
	return e.bodyOptions()
}
