package common

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Unbounded is the MaxSize value for a queue without a size limit.
const Unbounded = -1

// MeterName is the instrumentation scope name for ordq metrics.
const MeterName = "github.com/aarondwi/ordq"

// Config holds configuration shared by every queue in this module.
type Config struct {
	// MaxSize is the maximum number of items a queue holds before producers wait.
	// Unbounded (-1) disables the limit, any other value must be positive.
	MaxSize int

	// InitialCapacity pre-sizes the underlying storage. It is not a limit.
	InitialCapacity int

	// Name identifies the queue in logs and metrics.
	// A random UUID is used when empty.
	Name string

	// StartClosed creates the queue in the closed state.
	StartClosed bool

	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// Meter creates the queue's instruments. Defaults to the global MeterProvider.
	Meter metric.Meter
}

// DefaultConfig returns an unbounded, open queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:         Unbounded,
		InitialCapacity: 0,
	}
}

// Option configures a Config.
type Option func(*Config) error

// NewConfig applies opts on top of DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

// WithDefaults fills the unset name, logger and meter.
func (c Config) WithDefaults() Config {
	if c.Name == "" {
		c.Name = uuid.NewString()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Meter == nil {
		c.Meter = otel.Meter(MeterName)
	}
	return c
}

// Validate checks the size related fields.
func (c Config) Validate() error {
	if err := ValidateMaxSize(c.MaxSize); err != nil {
		return err
	}
	if c.InitialCapacity < 0 {
		return fmt.Errorf("%w: initial capacity %d is negative", ErrInvalidArgument, c.InitialCapacity)
	}
	return nil
}

// ValidateMaxSize accepts Unbounded or a positive size.
func ValidateMaxSize(n int) error {
	if n != Unbounded && n <= 0 {
		return fmt.Errorf("%w: max size must be -1 or positive, got %d", ErrInvalidArgument, n)
	}
	return nil
}

// WithMaxSize bounds the queue. Use Unbounded to lift the limit.
func WithMaxSize(n int) Option {
	return func(c *Config) error {
		if err := ValidateMaxSize(n); err != nil {
			return err
		}
		c.MaxSize = n
		return nil
	}
}

// WithInitialCapacity pre-sizes the queue storage.
func WithInitialCapacity(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("%w: initial capacity %d is negative", ErrInvalidArgument, n)
		}
		c.InitialCapacity = n
		return nil
	}
}

// WithName sets the name reported in logs and metrics.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidArgument)
		}
		c.Logger = l
		return nil
	}
}

// WithMeter sets the meter used to create the queue's instruments.
func WithMeter(m metric.Meter) Option {
	return func(c *Config) error {
		if m == nil {
			return fmt.Errorf("%w: nil meter", ErrInvalidArgument)
		}
		c.Meter = m
		return nil
	}
}

// WithStartClosed creates the queue closed; call Open before use.
func WithStartClosed() Option {
	return func(c *Config) error {
		c.StartClosed = true
		return nil
	}
}
