package model

import "time"

type ConnectionType string

const (
	ConnectionTypeEthernet ConnectionType = "ethernet"
	ConnectionTypeWifi     ConnectionType = "wifi"
	ConnectionTypeLTE      ConnectionType = "lte"
	ConnectionTypeUnknown  ConnectionType = "unknown"
)

// ChargePointStatus is the full status report of a charge point. It is
// assembled fresh on every pull and never mutated afterwards.
type ChargePointStatus struct {
	Timestamp      time.Time      `json:"timestamp"`
	OnlineSince    *time.Time     `json:"onlineSince,omitempty"`
	ConnectionType ConnectionType `json:"connectionType"`
	ChargePorts    []*ChargePort  `json:"chargePorts"`
	SystemInfo     *SystemInfo    `json:"systemInfo"`
}

// ChargePort groups everything known about one physical port.
type ChargePort struct {
	ChargePortID int              `json:"chargePortId"`
	Connector    *Connector       `json:"connector,omitempty"`
	Metering     *EnergyStatus    `json:"metering,omitempty"`
	Session      *ChargeSession   `json:"session,omitempty"`
	ThermalInfo  *PortThermalInfo `json:"thermalInfo,omitempty"`
	EvInfo       *EvInfo          `json:"evInfo,omitempty"`
}

// SystemInfo is the system and firmware block of the status report.
type SystemInfo struct {
	FirmwareVersion     string             `json:"firmwareVersion,omitempty"`
	FirmwareInstalledOn *time.Time         `json:"firmwareInstalledOn,omitempty"`
	BootTime            *time.Time         `json:"bootTime,omitempty"`
	CPULoad             *float64           `json:"cpuLoad,omitempty"`
	MemoryFreeBytes     *uint64            `json:"memoryFreeBytes,omitempty"`
	MemoryTotalBytes    *uint64            `json:"memoryTotalBytes,omitempty"`
	DiskUsagePercent    *float64           `json:"diskUsagePercent,omitempty"`
	OSVersion           string             `json:"osVersion,omitempty"`
	Architecture        string             `json:"architecture,omitempty"`
	EthernetReady       *bool              `json:"ethernetReady,omitempty"`
	WifiReady           *bool              `json:"wifiReady,omitempty"`
	LTEReady            *bool              `json:"lteReady,omitempty"`
	ThermalInfo         *SystemThermalInfo `json:"thermalInfo,omitempty"`
}
