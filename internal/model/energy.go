package model

// EnergyStatus holds the cumulative meters and the instantaneous electrical
// snapshot of a charge port. Nil means "not reported".
type EnergyStatus struct {
	// Cumulative registers, monotonic unless reset by maintenance.
	EnergyImportKWh           *float64 `json:"energyImportKWh,omitempty"`
	EnergyExportKWh           *float64 `json:"energyExportKWh,omitempty"`
	ReactiveEnergyImportKvarh *float64 `json:"reactiveEnergyImportKvarh,omitempty"`
	ReactiveEnergyExportKvarh *float64 `json:"reactiveEnergyExportKvarh,omitempty"`

	// Instantaneous values.
	Voltage            *float64  `json:"voltage,omitempty"`
	CurrentPerPhase    []float64 `json:"currentPerPhase,omitempty"`
	ActivePowerImportW *float64  `json:"activePowerImportW,omitempty"`
	ActivePowerExportW *float64  `json:"activePowerExportW,omitempty"`
}
