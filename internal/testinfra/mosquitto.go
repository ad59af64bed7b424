// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultMosquittoImage = "eclipse-mosquitto:2.0"
	mosquittoPort         = "1883/tcp"
)

// mosquittoConfig allows anonymous clients on the plain listener.
const mosquittoConfig = "listener 1883 0.0.0.0\nallow_anonymous true\n"

// MosquittoContainer is a running MQTT broker.
type MosquittoContainer struct {
	testcontainers.Container
	// BrokerURL is tcp://host:port, ready for paho.
	BrokerURL string
}

// NewMosquittoContainer starts a broker and waits until it accepts
// connections.
func NewMosquittoContainer(ctx context.Context) (*MosquittoContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultMosquittoImage,
		ExposedPorts: []string{mosquittoPort},
		Files: []testcontainers.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConfig),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForListeningPort(mosquittoPort).WithStartupTimeout(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mosquitto container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := c.MappedPort(ctx, mosquittoPort)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MosquittoContainer{
		Container: c,
		BrokerURL: fmt.Sprintf("tcp://%s:%s", host, port.Port()),
	}, nil
}
