// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
)

// Publisher modes.
const (
	ModeMemory   = "memory"
	ModeNATS     = "nats"
	ModeDisabled = "disabled"
)

var (
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("events: publisher is closed")

	// ErrSubscribeUnsupported is returned by Subscribe outside memory mode.
	ErrSubscribeUnsupported = errors.New("events: subscribe is only available in memory mode")
)

// Publisher sends station events to the configured transport.
type Publisher struct {
	mode    string
	pub     message.Publisher
	channel *gochannel.GoChannel
	server  *EmbeddedServer
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a publisher for cfg. In nats mode it starts the embedded
// server when requested and makes sure the stream exists before returning.
func New(ctx context.Context, cfg *config.EventsConfig, logger zerolog.Logger, m *metrics.Metrics) (*Publisher, error) {
	logger = logging.WithComponent(logger, "events")
	p := &Publisher{
		mode:    cfg.Mode,
		metrics: m,
		logger:  logger,
		breaker: newBreaker(DefaultBreakerConfig(), m, logger),
	}
	wmLogger := watermill.NewSlogLogger(logging.NewSlogLogger(logger))

	switch cfg.Mode {
	case ModeDisabled:
		logger.Info().Msg("Station events disabled")
		return p, nil

	case ModeMemory, "":
		p.mode = ModeMemory
		p.channel = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		p.pub = p.channel
		logger.Info().Msg("Station events published in-process")
		return p, nil

	case ModeNATS:
		url := cfg.URL
		if cfg.Embedded {
			srv, err := NewEmbeddedServer(ServerConfig{Host: "127.0.0.1", Port: -1, StoreDir: cfg.StoreDir})
			if err != nil {
				return nil, err
			}
			p.server = srv
			url = srv.ClientURL()
		}
		if err := EnsureStream(ctx, url, DefaultStreamConfig(cfg.Stream)); err != nil {
			p.shutdownServer()
			return nil, err
		}
		pub, err := newNATSPublisher(url, cfg, wmLogger)
		if err != nil {
			p.shutdownServer()
			return nil, err
		}
		p.pub = pub
		logger.Info().Str("url", url).Str("stream", cfg.Stream).Bool("embedded", cfg.Embedded).
			Msg("Station events published to NATS JetStream")
		return p, nil
	}
	return nil, fmt.Errorf("unknown events mode %q", cfg.Mode)
}

func newNATSPublisher(url string, cfg *config.EventsConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("triangulum"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill nats publisher: %w", err)
	}
	return pub, nil
}

// Mode returns the active transport mode.
func (p *Publisher) Mode() string {
	return p.mode
}

// PublishMoved publishes a station move event on its topic.
func (p *Publisher) PublishMoved(ctx context.Context, ev *StationMoved) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	data, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode station event: %w", err)
	}
	msg := message.NewMessage(ev.EventID, data)
	msg.Metadata.Set("shard", ev.Shard)
	msg.Metadata.Set("station_type", string(ev.Type))
	msg.Metadata.Set(natsgo.MsgIdHdr, ev.EventID)
	msg.SetContext(ctx)
	return p.publish(ev.Topic(), msg)
}

func (p *Publisher) publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.pub == nil {
		return nil
	}

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.pub.Publish(topic, msg)
	})
	status := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "rejected"
	case err != nil:
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(topic, status).Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns the messages published on topic. It is only available
// in memory mode; JetStream consumers attach to the stream directly.
func (p *Publisher) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.channel == nil {
		return nil, ErrSubscribeUnsupported
	}
	return p.channel.Subscribe(ctx, topic)
}

// Close shuts down the transport and the embedded server, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.pub != nil {
		err = p.pub.Close()
	}
	p.shutdownServer()
	return err
}

func (p *Publisher) shutdownServer() {
	if p.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Embedded NATS shutdown incomplete")
	}
	p.server = nil
}
