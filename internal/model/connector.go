package model

// ConnectorStatus is the high-level connector status reported upstream.
// An empty value and ConnectorStatusUnknown are equivalent.
type ConnectorStatus string

const (
	ConnectorStatusAvailable   ConnectorStatus = "available"
	ConnectorStatusPlugged     ConnectorStatus = "plugged"
	ConnectorStatusCharging    ConnectorStatus = "charging"
	ConnectorStatusFaulted     ConnectorStatus = "faulted"
	ConnectorStatusUnavailable ConnectorStatus = "unavailable"
	ConnectorStatusUnknown     ConnectorStatus = "unknown"
)

// Iec61851State is the control-pilot state letter (A–F).
type Iec61851State string

const (
	Iec61851StateA       Iec61851State = "a" // no vehicle, CP ~ +12 V
	Iec61851StateB       Iec61851State = "b" // vehicle detected, CP ~ +9 V
	Iec61851StateC       Iec61851State = "c" // ready/charging, CP ~ +6 V
	Iec61851StateD       Iec61851State = "d" // ready/charging with ventilation, CP ~ +3 V
	Iec61851StateE       Iec61851State = "e" // supply off / error, CP ~ 0 V
	Iec61851StateF       Iec61851State = "f" // CP fault, CP ~ -12 V
	Iec61851StateUnknown Iec61851State = "unknown"
)

type Iec61851Edition string

const (
	Iec61851Edition2017      Iec61851Edition = "iec618511_2017"
	Iec61851Edition2025Draft Iec61851Edition = "iec618511_2025Draft"
	Iec61851EditionUnknown   Iec61851Edition = "unknown"
)

// ChargingMode is the IEC 61851-1 charging mode of the connector.
type ChargingMode string

const (
	ChargingMode1       ChargingMode = "mode1"
	ChargingMode2       ChargingMode = "mode2"
	ChargingMode3       ChargingMode = "mode3"
	ChargingMode4       ChargingMode = "mode4"
	ChargingModeUnknown ChargingMode = "unknown"
)

// EnergyDirection is the configured direction capability, not a live reading.
type EnergyDirection string

const (
	EnergyDirectionCpToVehicleOnly EnergyDirection = "cpToVehicleOnly"
	EnergyDirectionVehicleToCpOnly EnergyDirection = "vehicleToCpOnly"
	EnergyDirectionBidirectional   EnergyDirection = "bidirectional"
	EnergyDirectionUnknown         EnergyDirection = "unknown"
)

type InterfaceType string

const (
	InterfaceTypePlug             InterfaceType = "plug"
	InterfaceTypeWireless         InterfaceType = "wireless"
	InterfaceTypePantographTop    InterfaceType = "pantographTop"
	InterfaceTypePantographBottom InterfaceType = "pantographBottom"
	InterfaceTypeRail             InterfaceType = "rail"
	InterfaceTypeUnknown          InterfaceType = "unknown"
)

type CurrentType string

const (
	CurrentTypeAC      CurrentType = "ac"
	CurrentTypeDC      CurrentType = "dc"
	CurrentTypeUnknown CurrentType = "unknown"
)

// Connector is the reported view of a connector. Nil pointers mean "not reported".
type Connector struct {
	Status            ConnectorStatus `json:"status,omitempty"`
	Locked            *bool           `json:"locked,omitempty"`
	Iec61851State     Iec61851State   `json:"iec61851State,omitempty"`
	PwmDutyCycle      *float64        `json:"pwmDutyCycle,omitempty"`
	RelayClosed       *bool           `json:"relayClosed,omitempty"`
	Iec61851Edition   Iec61851Edition `json:"iec61851Edition,omitempty"`
	ChargingMode      ChargingMode    `json:"chargingMode,omitempty"`
	EnergyDirection   EnergyDirection `json:"energyDirection,omitempty"`
	InterfaceType     InterfaceType   `json:"interfaceType,omitempty"`
	CurrentType       CurrentType     `json:"currentType,omitempty"`
	ConnectorStandard string          `json:"connectorStandard,omitempty"`
}
