package model

import "time"

type SessionState string

const (
	SessionStatePending   SessionState = "pending"
	SessionStateActive    SessionState = "active"
	SessionStatePaused    SessionState = "paused"
	SessionStateCompleted SessionState = "completed"
)

type EndReason string

const (
	EndReasonVehicleUnplugged EndReason = "vehicleUnplugged"
)

// ChargeSession is the current or last physical plug-to-unplug interval.
type ChargeSession struct {
	SessionID            string       `json:"sessionId"`
	CreatedAt            *time.Time   `json:"createdAt,omitempty"`
	EnergyFlowStartedAt  *time.Time   `json:"energyFlowStartedAt,omitempty"`
	LastUpdateAt         *time.Time   `json:"lastUpdateAt,omitempty"`
	EndedAt              *time.Time   `json:"endedAt,omitempty"`
	SessionState         SessionState `json:"sessionState,omitempty"`
	EndReason            EndReason    `json:"endReason,omitempty"`
	EnergyToVehicleKWh   *float64     `json:"energyToVehicleKWh,omitempty"`
	EnergyFromVehicleKWh *float64     `json:"energyFromVehicleKWh,omitempty"`
}
