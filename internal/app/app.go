package app

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/w3cp/cp-firmware/internal/bus"
	"github.com/w3cp/cp-firmware/internal/config"
	"github.com/w3cp/cp-firmware/internal/control"
	"github.com/w3cp/cp-firmware/internal/sim"
	"github.com/w3cp/cp-firmware/internal/status"
	"github.com/w3cp/cp-firmware/internal/transmission"
)

// Services bundles the long-running parts of the firmware. Optional parts
// are nil when disabled.
type Services struct {
	Scheduler      *StatusScheduler
	Simulator      *sim.Simulator
	WebSocket      *transmission.WSConnection
	Control        *control.Server
	Events         *bus.Bus
	ConnectionType *status.ConnectionTypeFeeder
	OnlineSince    *status.OnlineSinceFeeder
}

// Run launches every service and blocks until ctx is cancelled or one of
// them fails.
func Run(parentCtx context.Context, cfg *config.Config, svc Services, logger *logrus.Logger) error {
	grp, ctx := errgroup.WithContext(parentCtx)

	// Connection lifecycle --------------------------------------------------
	events := svc.Events.Subscribe()
	grp.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				onConnectionEvent(ev, svc, logger)
			}
		}
	})

	// Status scheduler ------------------------------------------------------
	grp.Go(func() error {
		return svc.Scheduler.Run(ctx, cfg.StatusInterval)
	})

	if svc.Simulator != nil {
		grp.Go(func() error {
			return svc.Simulator.Run(ctx, config.SimulatorTickInterval)
		})
	}
	if svc.WebSocket != nil {
		grp.Go(func() error {
			return svc.WebSocket.Run(ctx)
		})
	}
	if svc.Control != nil {
		grp.Go(func() error {
			return svc.Control.Run(ctx)
		})
	}

	err := grp.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Warn("app: background group exited")
		return err
	}
	return nil
}

// onConnectionEvent refreshes connection-derived status on every verified
// (re)connect.
func onConnectionEvent(ev bus.Event, svc Services, logger *logrus.Logger) {
	switch ev.Kind {
	case bus.ConnectionOpened:
		logger.Info("Backend connection verified")
		if svc.ConnectionType != nil {
			svc.ConnectionType.Refresh("connection opened")
		}
		if svc.OnlineSince != nil {
			svc.OnlineSince.Reset()
		}
	case bus.ConnectionClosed:
		logger.WithField("reason", ev.Reason).Warn("Backend connection closed")
	}
}
