package chargeport

import (
	"context"
	"sync"

	"github.com/w3cp/cp-firmware/internal/model"
)

// EvInfoEvent is implemented by SocUpdate and EnergyUpdate.
type EvInfoEvent interface {
	isEvInfoEvent()
}

// SocUpdate patches the state of charge (percent, truncated to an integer).
type SocUpdate struct {
	Soc *float64
}

// EnergyUpdate patches the stored battery energy in Wh.
type EnergyUpdate struct {
	EnergyWh *float64
}

func (SocUpdate) isEvInfoEvent()    {}
func (EnergyUpdate) isEvInfoEvent() {}

// EvInfo holds what is known about the connected vehicle.
type EvInfo struct {
	mu   sync.Mutex
	info *model.EvInfo
}

func NewEvInfo() *EvInfo { return &EvInfo{} }

// Set installs a copy of info. Passing nil clears it.
func (s *EvInfo) Set(info *model.EvInfo) {
	s.mu.Lock()
	s.info = info.Clone()
	s.mu.Unlock()
}

func (s *EvInfo) Reset() {
	s.mu.Lock()
	s.info = nil
	s.mu.Unlock()
}

// Apply patches a single energy leaf. It is a no-op unless EV info with an
// energy block is present and the event carries a value.
func (s *EvInfo) Apply(ev EvInfoEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info == nil || s.info.Energy == nil {
		return
	}
	switch e := ev.(type) {
	case SocUpdate:
		if e.Soc != nil {
			soc := int(*e.Soc)
			s.info.Energy.Soc = &soc
		}
	case EnergyUpdate:
		if e.EnergyWh != nil {
			wh := *e.EnergyWh
			s.info.Energy.EnergyWh = &wh
		}
	}
}

// Get returns a copy of the EV info and whether one is installed.
func (s *EvInfo) Get() (*model.EvInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.Clone(), s.info != nil
}

// Fetch returns a copy of the EV info, or nil when there is none.
func (s *EvInfo) Fetch(context.Context) (*model.EvInfo, error) {
	info, _ := s.Get()
	return info, nil
}
