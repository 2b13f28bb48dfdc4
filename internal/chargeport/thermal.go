package chargeport

import (
	"context"

	"github.com/w3cp/cp-firmware/internal/model"
)

// PortThermal reports port-level temperatures. This hardware exposes no
// connector or cable sensors, so every reading is left unset.
type PortThermal struct{}

func (PortThermal) Fetch(context.Context) (*model.PortThermalInfo, error) {
	return &model.PortThermalInfo{}, nil
}
