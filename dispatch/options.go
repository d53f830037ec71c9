package dispatch

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/aarondwi/ordq/common"
)

type options struct {
	name    string
	logger  *slog.Logger
	meter   metric.Meter
	tracer  trace.Tracer
	limiter *rate.Limiter
}

func defaultOptions() options {
	return options{logger: slog.Default()}
}

// Option configures a Dispatcher.
type Option func(*options) error

// WithName sets the name reported in logs, metrics and spans.
// A random UUID is used when unset.
func WithName(name string) Option {
	return func(o *options) error {
		o.name = name
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", common.ErrInvalidArgument)
		}
		o.logger = l
		return nil
	}
}

// WithMeter sets the meter used to create the dispatcher's instruments.
func WithMeter(m metric.Meter) Option {
	return func(o *options) error {
		if m == nil {
			return fmt.Errorf("%w: nil meter", common.ErrInvalidArgument)
		}
		o.meter = m
		return nil
	}
}

// WithTracer sets the tracer used for handler spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) error {
		if t == nil {
			return fmt.Errorf("%w: nil tracer", common.ErrInvalidArgument)
		}
		o.tracer = t
		return nil
	}
}

// WithRateLimit paces handler invocations to perSecond on average,
// allowing bursts of burst. Zero or negative perSecond disables pacing.
// Burst defaults to 1.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) error {
		if perSecond <= 0 {
			o.limiter = nil
			return nil
		}
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}
