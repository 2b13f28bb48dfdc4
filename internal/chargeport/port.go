package chargeport

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/w3cp/cp-firmware/internal/model"
)

// Port wires the state machines of one charge port together and assembles
// them into a model.ChargePort.
type Port struct {
	ID        int
	Connector *Connector
	Metering  *Metering
	Session   *Session
	EvInfo    *EvInfo
	Thermal   PortThermal
}

// NewPort builds a port whose connector and meter feed its session.
func NewPort(id int, logger *logrus.Logger) *Port {
	session := NewSession(logger)
	return &Port{
		ID:        id,
		Connector: NewConnector(session, logger),
		Metering:  NewMetering(session),
		Session:   session,
		EvInfo:    NewEvInfo(),
	}
}

// Fetch reads all sub-states concurrently. Any failure fails the port.
func (p *Port) Fetch(ctx context.Context) (*model.ChargePort, error) {
	var (
		connector *model.Connector
		metering  *model.EnergyStatus
		session   *model.ChargeSession
		thermal   *model.PortThermalInfo
		evInfo    *model.EvInfo
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() (err error) {
		connector, err = p.Connector.Fetch(gctx)
		return wrap("connector", err)
	})
	grp.Go(func() (err error) {
		metering, err = p.Metering.Fetch(gctx)
		return wrap("metering", err)
	})
	grp.Go(func() (err error) {
		session, err = p.Session.Fetch(gctx)
		return wrap("session", err)
	})
	grp.Go(func() (err error) {
		thermal, err = p.Thermal.Fetch(gctx)
		return wrap("thermal", err)
	})
	grp.Go(func() (err error) {
		evInfo, err = p.EvInfo.Fetch(gctx)
		return wrap("ev info", err)
	})
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("charge port %d: %w", p.ID, err)
	}

	return &model.ChargePort{
		ChargePortID: p.ID,
		Connector:    connector,
		Metering:     metering,
		Session:      session,
		ThermalInfo:  thermal,
		EvInfo:       evInfo,
	}, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
