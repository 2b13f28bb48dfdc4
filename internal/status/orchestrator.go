package status

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/w3cp/cp-firmware/internal/model"
)

// Orchestrator assembles a ChargePointStatus from its feeders.
type Orchestrator struct {
	systemInfo     Feeder[*model.SystemInfo]
	connectionType Feeder[model.ConnectionType]
	onlineSince    Feeder[*time.Time]
	ports          []Feeder[*model.ChargePort]
	now            func() time.Time
}

func NewOrchestrator(
	systemInfo Feeder[*model.SystemInfo],
	connectionType Feeder[model.ConnectionType],
	onlineSince Feeder[*time.Time],
	ports ...Feeder[*model.ChargePort],
) *Orchestrator {
	return &Orchestrator{
		systemInfo:     systemInfo,
		connectionType: connectionType,
		onlineSince:    onlineSince,
		ports:          ports,
		now:            time.Now,
	}
}

// AssembleStatus queries every feeder concurrently and waits for all of
// them. Ports keep their configured order. Any feeder error fails the whole
// snapshot.
func (o *Orchestrator) AssembleStatus(ctx context.Context) (*model.ChargePointStatus, error) {
	var (
		sys   *model.SystemInfo
		conn  model.ConnectionType
		since *time.Time
		ports = make([]*model.ChargePort, len(o.ports))
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() (err error) {
		if sys, err = o.systemInfo.Fetch(gctx); err != nil {
			return fmt.Errorf("system info: %w", err)
		}
		return nil
	})
	grp.Go(func() (err error) {
		if conn, err = o.connectionType.Fetch(gctx); err != nil {
			return fmt.Errorf("connection type: %w", err)
		}
		return nil
	})
	grp.Go(func() (err error) {
		if since, err = o.onlineSince.Fetch(gctx); err != nil {
			return fmt.Errorf("online since: %w", err)
		}
		return nil
	})
	for i, p := range o.ports {
		i, p := i, p
		grp.Go(func() error {
			port, err := p.Fetch(gctx)
			if err != nil {
				return err
			}
			ports[i] = port
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("assemble status: %w", err)
	}

	return &model.ChargePointStatus{
		Timestamp:      o.now(),
		OnlineSince:    since,
		ConnectionType: conn,
		ChargePorts:    ports,
		SystemInfo:     sys,
	}, nil
}
