// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package services

import (
	"context"
)

// SubscriptionService holds an event bus subscription for as long as it is
// supervised. Attach runs when the service starts and detach when its
// context ends, so a restart never leaves a duplicate handler on the bus.
//
// Example usage:
//
//	svc := services.NewSubscriptionService("engine-subscription",
//		func() { eng.Start(bus) }, eng.Stop)
//	tree.AddCoreService(svc)
type SubscriptionService struct {
	attach func()
	detach func()
	name   string
}

// NewSubscriptionService creates a named subscription holder.
func NewSubscriptionService(name string, attach, detach func()) *SubscriptionService {
	return &SubscriptionService{attach: attach, detach: detach, name: name}
}

// Serve implements suture.Service.
func (s *SubscriptionService) Serve(ctx context.Context) error {
	s.attach()
	defer s.detach()

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *SubscriptionService) String() string {
	return s.name
}
