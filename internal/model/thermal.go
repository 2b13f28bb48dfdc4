package model

type TemperatureUnit string

const (
	TemperatureUnitCelsius    TemperatureUnit = "celsius"
	TemperatureUnitFahrenheit TemperatureUnit = "fahrenheit"
	TemperatureUnitUnknown    TemperatureUnit = "unknown"
)

// TemperatureValue is a single reading. A nil Value means the sensor is
// missing or failed.
type TemperatureValue struct {
	Value *float64        `json:"value,omitempty"`
	Unit  TemperatureUnit `json:"unit,omitempty"`
}

// Celsius builds a celsius reading.
func Celsius(v float64) *TemperatureValue {
	return &TemperatureValue{Value: &v, Unit: TemperatureUnitCelsius}
}

// PortThermalInfo is port-level thermal telemetry.
type PortThermalInfo struct {
	Connector *TemperatureValue `json:"connector,omitempty"`
	Cable     *TemperatureValue `json:"cable,omitempty"`
	Inlet     *TemperatureValue `json:"inlet,omitempty"`
	Socket    *TemperatureValue `json:"socket,omitempty"`
}

// SystemThermalInfo is system-wide thermal telemetry.
type SystemThermalInfo struct {
	Ambient       *TemperatureValue `json:"ambient,omitempty"`
	PCB           *TemperatureValue `json:"pcb,omitempty"`
	MCU           *TemperatureValue `json:"mcu,omitempty"`
	Transformer   *TemperatureValue `json:"transformer,omitempty"`
	Relay         *TemperatureValue `json:"relay,omitempty"`
	CoolingSystem *TemperatureValue `json:"coolingSystem,omitempty"`
	Internal      *TemperatureValue `json:"internal,omitempty"`
}
