package model

type EvKind string

const (
	EvKindCar        EvKind = "car"
	EvKindMotorcycle EvKind = "motorcycle"
	EvKindScooter    EvKind = "scooter"
	EvKindBus        EvKind = "bus"
	EvKindTruck      EvKind = "truck"
	EvKindBoat       EvKind = "boat"
	EvKindShip       EvKind = "ship"
	EvKindOther      EvKind = "other"
)

type IdType string

const (
	IdTypeVIN          IdType = "vin"
	IdTypeFleetID      IdType = "fleetId"
	IdTypeSerialNumber IdType = "serialNumber"
	IdTypeIMONumber    IdType = "imoNumber"
	IdTypeOther        IdType = "other"
)

type EvProtocol string

const (
	EvProtocolISO15118 EvProtocol = "iso15118"
	EvProtocolDIN70121 EvProtocol = "din70121"
	EvProtocolIEC61851 EvProtocol = "iec61851"
	EvProtocolUnknown  EvProtocol = "unknown"
)

// EvInfo describes what is connected to the charge port.
type EvInfo struct {
	Identity     *EvIdentity     `json:"identity,omitempty"`
	Energy       *EvEnergy       `json:"energy,omitempty"`
	Protocol     EvProtocol      `json:"protocol,omitempty"`
	Capabilities *EvCapabilities `json:"capabilities,omitempty"`
}

type EvIdentity struct {
	Kind   EvKind `json:"kind,omitempty"`
	IdType IdType `json:"idType,omitempty"`
	ID     string `json:"id,omitempty"`
	Brand  string `json:"brand,omitempty"`
	Model  string `json:"model,omitempty"`
	Label  string `json:"label,omitempty"`
}

// EvEnergy is the battery block. Soc values are percent (0–100).
type EvEnergy struct {
	Soc        *int     `json:"soc,omitempty"`
	SocTarget  *int     `json:"socTarget,omitempty"`
	EnergyWh   *float64 `json:"energyWh,omitempty"`
	CapacityWh *float64 `json:"capacityWh,omitempty"`
}

type EvCapabilities struct {
	CanDischarge     *bool `json:"canDischarge,omitempty"`
	HasMultiplePacks *bool `json:"hasMultiplePacks,omitempty"`
	IsFleetAsset     *bool `json:"isFleetAsset,omitempty"`
}

// Clone returns a deep copy so callers never share mutable leaves.
func (e *EvInfo) Clone() *EvInfo {
	if e == nil {
		return nil
	}
	out := &EvInfo{Protocol: e.Protocol}
	if e.Identity != nil {
		id := *e.Identity
		out.Identity = &id
	}
	if e.Energy != nil {
		out.Energy = &EvEnergy{
			Soc:        cloneInt(e.Energy.Soc),
			SocTarget:  cloneInt(e.Energy.SocTarget),
			EnergyWh:   cloneFloat(e.Energy.EnergyWh),
			CapacityWh: cloneFloat(e.Energy.CapacityWh),
		}
	}
	if e.Capabilities != nil {
		out.Capabilities = &EvCapabilities{
			CanDischarge:     cloneBool(e.Capabilities.CanDischarge),
			HasMultiplePacks: cloneBool(e.Capabilities.HasMultiplePacks),
			IsFleetAsset:     cloneBool(e.Capabilities.IsFleetAsset),
		}
	}
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
