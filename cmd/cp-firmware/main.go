package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/w3cp/cp-firmware/internal/app"
	"github.com/w3cp/cp-firmware/internal/bus"
	"github.com/w3cp/cp-firmware/internal/chargeport"
	"github.com/w3cp/cp-firmware/internal/config"
	"github.com/w3cp/cp-firmware/internal/control"
	"github.com/w3cp/cp-firmware/internal/model"
	"github.com/w3cp/cp-firmware/internal/mqtt"
	"github.com/w3cp/cp-firmware/internal/netutil"
	"github.com/w3cp/cp-firmware/internal/sim"
	"github.com/w3cp/cp-firmware/internal/status"
	"github.com/w3cp/cp-firmware/internal/sysinfo"
	"github.com/w3cp/cp-firmware/internal/transmission"
)

// version is injected at build time via ldflags
var version = "dev"

func main() {
	cfg := parseFlags()

	logger := setupLogger(cfg.Verbose)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logrus.Fields{
		"version":         version,
		"charge_point_id": cfg.ChargePointID,
		"transport":       transportName(cfg),
		"simulate":        cfg.Simulate,
		"control":         cfg.ControlAddr,
	}).Info("Starting cp-firmware")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	events := bus.New()

	// Charge port ----------------------------------------------------------------
	port := chargeport.NewPort(1, logger)

	var simulator *sim.Simulator
	if cfg.Simulate {
		simulator = sim.New(port.Connector, port.Metering, port.EvInfo, cfg.SimSeed, logger)
		logger.WithField("seed", cfg.SimSeed).Info("Simulator attached to charge port 1")
	}

	// Status assembly ------------------------------------------------------------
	thermal := sysinfo.NewThermalReader(cfg.ThermalPath, cfg.SimSeed)
	system := sysinfo.NewCollector(cfg.FirmwareVersion, thermal, logger)
	connType := status.NewConnectionTypeFeeder(detectConnectionType, logger)
	online := status.NewOnlineSinceFeeder()
	orchestrator := status.NewOrchestrator(system, connType, online, port)

	// Transport ------------------------------------------------------------------
	var (
		conn       transmission.Connection = transmission.Offline{}
		wsConn     *transmission.WSConnection
		mqttClient *mqtt.Client
	)
	switch {
	case cfg.UsesMQTT():
		mqttConn, client, err := connectMQTT(cfg, events, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MQTT client")
		}
		conn, mqttClient = mqttConn, client
		logger.Info("MQTT transport ready")
	case cfg.UsesWebSocket():
		wsConn = transmission.NewWSConnection(cfg.TransportURL, cfg.ChargePointID,
			netutil.TLSConfig(cfg.TLSInsecure, logger), config.SendTimeout, config.ReconnectDelay, events, logger)
		conn = wsConn
		logger.Info("WebSocket transport ready")
	default:
		logger.Warn("No transport configured; status will not be sent")
	}

	var ctrl *control.Server
	if cfg.HasControl() {
		opts := control.Options{
			Addr:            cfg.ControlAddr,
			Assembler:       orchestrator,
			Connector:       port.Connector,
			Metering:        port.Metering,
			ShutdownTimeout: config.ControlShutdownTimeout,
		}
		if simulator != nil {
			opts.Simulator = simulator
		}
		ctrl = control.NewServer(opts, logger)
	}

	// Run application ------------------------------------------------------------
	err := app.Run(ctx, cfg, app.Services{
		Scheduler:      app.NewStatusScheduler(conn, orchestrator, cfg.MaxStatusSilence, config.SendTimeout, logger),
		Simulator:      simulator,
		WebSocket:      wsConn,
		Control:        ctrl,
		Events:         events,
		ConnectionType: connType,
		OnlineSince:    online,
	}, logger)

	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
	events.Close()
	if err != nil {
		logger.WithError(err).Error("cp-firmware stopped with error")
		os.Exit(1)
	}
	logger.Info("cp-firmware stopped")
}

// connectMQTT wires the broker session to an MQTTConnection. paho runs the
// connect handler on its own goroutine, possibly before NewClient returns,
// so the handlers wait until the connection exists.
func connectMQTT(cfg *config.Config, events *bus.Bus, logger *logrus.Logger) (*transmission.MQTTConnection, *mqtt.Client, error) {
	ready := make(chan struct{})
	var conn *transmission.MQTTConnection

	handlers := mqtt.Handlers{
		OnConnect: func() {
			<-ready
			if err := conn.Start(); err != nil {
				logger.WithError(err).Warn("MQTT session setup failed")
			}
		},
		OnConnectionLost: func(err error) {
			<-ready
			conn.Lost(err)
		},
	}
	client, err := mqtt.NewClient(cfg.TransportURL, cfg.ChargePointID,
		netutil.TLSConfig(cfg.TLSInsecure, logger), config.MQTTTimeout, handlers, logger)
	if err != nil {
		return nil, nil, err
	}
	conn = transmission.NewMQTTConnection(client, events, logger)
	close(ready)
	return conn, client, nil
}

func detectConnectionType() (model.ConnectionType, error) {
	ifaces, err := netutil.ListInterfaces()
	if err != nil {
		return model.ConnectionTypeUnknown, err
	}
	return netutil.DetectConnectionType(ifaces), nil
}

func transportName(cfg *config.Config) string {
	switch {
	case cfg.UsesMQTT():
		return "mqtt"
	case cfg.UsesWebSocket():
		return "websocket"
	default:
		return "none"
	}
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags() *config.Config {
	cfg := config.GetDefaultConfig()

	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.StringVar(&cfg.ChargePointID, "cp-id", getEnv("CP_ID", generateChargePointID()), "Charge point identifier")
	flag.StringVar(&cfg.TransportURL, "transport-url", getEnv("CP_TRANSPORT_URL", cfg.TransportURL), "Backend URL (mqtt://, mqtts://, ws:// or wss://)")
	flag.BoolVar(&cfg.TLSInsecure, "tls-insecure", getEnv("CP_TLS_INSECURE", "false") == "true", "Skip TLS certificate verification")
	flag.StringVar(&cfg.ControlAddr, "control-addr", getEnv("CP_CONTROL_ADDR", cfg.ControlAddr), "Control API listen address (empty disables it)")
	flag.BoolVar(&cfg.Simulate, "simulate", getEnv("CP_SIMULATE", strconv.FormatBool(cfg.Simulate)) == "true", "Drive the charge port from the simulator")
	flag.Int64Var(&cfg.SimSeed, "sim-seed", getEnvInt64("CP_SIM_SEED", cfg.SimSeed), "Simulator random seed")
	flag.IntVar(&cfg.ChargePorts, "charge-ports", int(getEnvInt64("CP_CHARGE_PORTS", int64(cfg.ChargePorts))), "Number of charge ports")
	flag.StringVar(&cfg.ThermalPath, "thermal-path", getEnv("CP_THERMAL_PATH", cfg.ThermalPath), "sysfs thermal zone directory")
	flag.StringVar(&cfg.FirmwareVersion, "firmware-version", getEnv("CP_FIRMWARE_VERSION", version), "Reported firmware version")
	flag.BoolVarP(&cfg.Verbose, "verbose", "v", getEnv("CP_VERBOSE", "false") == "true", "Verbose logging")
	flag.DurationVar(&cfg.StatusInterval, "status-interval", getEnvDuration("CP_STATUS_INTERVAL", cfg.StatusInterval), "Status evaluation interval")
	flag.DurationVar(&cfg.MaxStatusSilence, "max-status-silence", getEnvDuration("CP_MAX_STATUS_SILENCE", cfg.MaxStatusSilence), "Resend unchanged status after this long")

	flag.Parse()

	if *showVersion {
		fmt.Printf("cp-firmware %s\n", version)
		os.Exit(0)
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	} else if n, err2 := strconv.Atoi(v); err2 == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// generateChargePointID derives an identifier from the hostname, falling
// back to a random one.
func generateChargePointID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return "cp-" + host
	}
	return "cp-" + uuid.NewString()[:8]
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
