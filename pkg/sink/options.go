package sink

import (
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/metrics"
)

type options struct {
	logger  *zap.Logger
	metrics *metrics.SinkMetrics
}

// Option customizes a sink
type Option func(*options)

// WithLogger sets the sink logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the sink instrumentation
func WithMetrics(m *metrics.SinkMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(sink string, opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(zap.String("sink", sink))
	return o
}
