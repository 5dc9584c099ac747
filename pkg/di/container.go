// Package di provides dependency injection container
package di

import (
	"fmt"
	"strings"

	"github.com/ssargent/drlog/pkg/api"
	"github.com/ssargent/drlog/pkg/config"
	"github.com/ssargent/drlog/pkg/sink"
)

// SinkFactory opens the sink a configuration selects
type SinkFactory interface {
	NewSink(cfg config.Sink, opts ...sink.Option) (sink.Sink, error)
}

// DefaultSinkFactory is the default implementation of SinkFactory
type DefaultSinkFactory struct{}

// NewSinkFactory creates a new sink factory
func NewSinkFactory() SinkFactory {
	return &DefaultSinkFactory{}
}

// NewSink opens a file, pebble, kafka or memory sink
func (f *DefaultSinkFactory) NewSink(cfg config.Sink, opts ...sink.Option) (sink.Sink, error) {
	switch strings.ToLower(cfg.Type) {
	case sink.TypeFile:
		return sink.NewFile(sink.FileConfig{Dir: cfg.Dir, SegmentSize: cfg.SegmentSize}, opts...)
	case sink.TypePebble:
		return sink.OpenPebble(cfg.Dir, opts...)
	case sink.TypeKafka:
		return sink.NewKafka(sink.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, opts...)
	case sink.TypeMemory:
		return sink.NewMemory(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", sink.ErrUnknownType, cfg.Type)
	}
}

// Container holds all the dependencies for the application
type Container struct {
	sinkFactory   SinkFactory
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		sinkFactory:   NewSinkFactory(),
		serverFactory: api.NewServerFactory(),
	}
}

// GetSinkFactory returns the sink factory
func (c *Container) GetSinkFactory() SinkFactory {
	return c.sinkFactory
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetSinkFactory allows overriding the sink factory (for testing)
func (c *Container) SetSinkFactory(factory SinkFactory) {
	c.sinkFactory = factory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
