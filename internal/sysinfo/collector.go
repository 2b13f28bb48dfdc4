package sysinfo

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/model"
	"github.com/w3cp/cp-firmware/internal/netutil"
)

// Collector gathers the system block of the status report. Individual
// telemetry failures leave the matching field unset rather than failing the
// whole report.
type Collector struct {
	FirmwareVersion string
	DiskPath        string

	bootTime   time.Time
	thermal    *ThermalReader
	interfaces func() ([]netutil.Interface, error)
	logger     *logrus.Logger
}

func NewCollector(firmwareVersion string, thermal *ThermalReader, logger *logrus.Logger) *Collector {
	return &Collector{
		FirmwareVersion: firmwareVersion,
		DiskPath:        "/",
		bootTime:        time.Now(),
		thermal:         thermal,
		interfaces:      netutil.ListInterfaces,
		logger:          logger,
	}
}

func (c *Collector) Fetch(ctx context.Context) (*model.SystemInfo, error) {
	boot := c.bootTime
	info := &model.SystemInfo{
		FirmwareVersion:     c.FirmwareVersion,
		FirmwareInstalledOn: &boot,
		BootTime:            &boot,
		Architecture:        runtime.GOARCH,
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		load := pct[0] / 100.0
		info.CPULoad = &load
	} else if err != nil {
		c.logger.WithError(err).Debug("sysinfo: cpu load unavailable")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		total, free := vm.Total, vm.Available
		info.MemoryTotalBytes = &total
		info.MemoryFreeBytes = &free
	} else {
		c.logger.WithError(err).Debug("sysinfo: memory stats unavailable")
	}

	if du, err := disk.UsageWithContext(ctx, c.DiskPath); err == nil && du.Total > 0 {
		used := du.UsedPercent
		info.DiskUsagePercent = &used
	} else if err != nil {
		c.logger.WithError(err).Debug("sysinfo: disk usage unavailable")
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.OSVersion = strings.TrimSpace(hi.OS + " " + hi.KernelVersion)
		if hi.KernelArch != "" {
			info.Architecture = hi.KernelArch
		}
	} else {
		info.OSVersion = runtime.GOOS
	}

	if ifaces, err := c.interfaces(); err == nil {
		eth, wifi, lte := netutil.Readiness(ifaces)
		info.EthernetReady, info.WifiReady, info.LTEReady = &eth, &wifi, &lte
	}

	if c.thermal != nil {
		thermal, err := c.thermal.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		info.ThermalInfo = thermal
	}
	return info, nil
}
