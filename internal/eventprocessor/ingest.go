// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

//go:build nats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/meshguard/internal/logging"
)

// Available reports whether the binary was built with NATS support.
const Available = true

// Ingest consumes event envelopes from JetStream and forwards them onto
// the bus. It implements suture.Service.
type Ingest struct {
	cfg    Config
	bridge *Bridge
	logger watermill.LoggerAdapter
}

// NewIngest validates cfg and prepares the service. Nothing connects
// until Serve.
func NewIngest(cfg Config, bus EventPublisher) (*Ingest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ingest{
		cfg:    cfg,
		bridge: NewBridge(bus),
		logger: watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "nats")),
	}, nil
}

// String names the service in supervisor logs.
func (i *Ingest) String() string { return "nats-ingest" }

// Serve starts the embedded server if configured, provisions the stream
// and consumes until ctx ends.
func (i *Ingest) Serve(ctx context.Context) error {
	url := i.cfg.URL
	if i.cfg.Embedded {
		srv, err := NewEmbeddedServer(i.cfg)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), i.cfg.CloseTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logging.Warn().Err(err).Msg("Embedded NATS shutdown")
			}
		}()
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if err := i.provision(ctx, url); err != nil {
		return err
	}

	sub, err := i.newSubscriber(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Close NATS subscriber")
		}
	}()

	messages, err := sub.Subscribe(ctx, i.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", i.cfg.Topic, err)
	}
	logging.Info().Str("topic", i.cfg.Topic).Str("stream", i.cfg.Stream).Msg("NATS ingest running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("nats subscription closed")
			}
			i.process(ctx, msg)
		}
	}
}

// process acks handled and malformed messages. Anything else is nacked
// for redelivery up to MaxDeliver.
func (i *Ingest) process(ctx context.Context, msg *message.Message) {
	err := i.bridge.HandleMessage(ctx, msg.Payload)
	if err != nil && !errors.Is(err, ErrMalformed) {
		msg.Nack()
		return
	}
	msg.Ack()
}

func (i *Ingest) provision(ctx context.Context, url string) error {
	nc, err := natsgo.Connect(url, natsgo.Name("meshguard-provision"), natsgo.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("connect to NATS %s: %w", logging.RedactURL(url), err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return EnsureStream(pctx, js, i.cfg)
}

func (i *Ingest) newSubscriber(url string) (message.Subscriber, error) {
	logger := i.logger
	natsOpts := []natsgo.Option{
		natsgo.Name("meshguard-ingest"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(i.cfg.MaxReconnects),
		natsgo.ReconnectWait(i.cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS subscriber reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(i.cfg.MaxDeliver),
		natsgo.AckWait(i.cfg.AckWait),
		natsgo.DeliverNew(),
		natsgo.BindStream(i.cfg.Stream),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: i.cfg.QueueGroup,
		SubscribersCount: i.cfg.SubscribersCount,
		AckWaitTimeout:   i.cfg.AckWait,
		CloseTimeout:     i.cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &rawUnmarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    false,
			SubscribeOptions: subOpts,
			DurablePrefix:    i.cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

// rawUnmarshaler accepts plain JSON publishes from collectors that do not
// speak watermill's header format.
type rawUnmarshaler struct{}

func (rawUnmarshaler) Unmarshal(msg *natsgo.Msg) (*message.Message, error) {
	id := msg.Header.Get(wmNats.WatermillUUIDHdr)
	if id == "" {
		id = watermill.NewUUID()
	}
	m := message.NewMessage(id, msg.Data)
	for k := range msg.Header {
		if k == wmNats.WatermillUUIDHdr {
			continue
		}
		m.Metadata.Set(k, msg.Header.Get(k))
	}
	return m, nil
}
