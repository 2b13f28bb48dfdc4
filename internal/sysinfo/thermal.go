package sysinfo

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/w3cp/cp-firmware/internal/model"
)

// Bounds of the simulated temperature walk used when no zones exist.
const (
	simMinC  = 35.0
	simMaxC  = 65.0
	simStart = 42.0
)

// ThermalReader maps sysfs thermal zones onto SystemThermalInfo. Hosts
// without thermal zones get a bounded random walk instead.
type ThermalReader struct {
	base string

	mu      sync.Mutex
	rng     *rand.Rand
	simBase float64
}

func NewThermalReader(base string, seed int64) *ThermalReader {
	return &ThermalReader{
		base:    base,
		rng:     rand.New(rand.NewSource(seed)),
		simBase: simStart,
	}
}

func (r *ThermalReader) Fetch(context.Context) (*model.SystemThermalInfo, error) {
	zones := r.readZones()
	if len(zones) == 0 {
		zones = r.simulate()
	}
	return mapZones(zones), nil
}

// readZones returns the hottest reading per zone type. Zones that cannot be
// read or report a non-positive value are skipped.
func (r *ThermalReader) readZones() map[string]float64 {
	entries, err := os.ReadDir(r.base)
	if err != nil {
		return nil
	}
	out := make(map[string]float64)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "thermal_zone") {
			continue
		}
		dir := filepath.Join(r.base, e.Name())
		temp, ok := readMilliCelsius(filepath.Join(dir, "temp"))
		if !ok || temp <= 0 {
			continue
		}
		name := e.Name()
		if b, err := os.ReadFile(filepath.Join(dir, "type")); err == nil {
			name = strings.TrimSpace(string(b))
		}
		if prev, seen := out[name]; !seen || temp > prev {
			out[name] = temp
		}
	}
	return out
}

func readMilliCelsius(path string) (float64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(milli) / 1000.0, true
}

func (r *ThermalReader) simulate() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.simBase += r.rng.Float64() - 0.5
	r.simBase = max(simMinC, min(simMaxC, r.simBase))
	return map[string]float64{
		"controller_sim": r.simBase,
		"board_sim":      r.simBase - 3,
		"ambient_sim":    r.simBase - 10,
	}
}

// mapZones assigns zone readings by name. Names are visited in sorted order
// so the first unmatched zone deterministically becomes "internal".
func mapZones(zones map[string]float64) *model.SystemThermalInfo {
	names := make([]string, 0, len(zones))
	for n := range zones {
		names = append(names, n)
	}
	sort.Strings(names)

	info := &model.SystemThermalInfo{}
	for _, n := range names {
		v := model.Celsius(zones[n])
		name := strings.ToLower(n)
		switch {
		case strings.Contains(name, "ambient"):
			info.Ambient = v
		case containsAny(name, "mcu", "cpu", "pkg", "soc", "controller"):
			info.MCU = v
		case containsAny(name, "pcb", "board"):
			info.PCB = v
		case strings.Contains(name, "internal"):
			info.Internal = v
		case info.Internal == nil:
			info.Internal = v
		}
	}
	return info
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
