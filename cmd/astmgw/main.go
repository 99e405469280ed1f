// Command astmgw runs the ASTM E1394/LIS2-A2 gateway: it accepts a
// single analyzer connection over a serial line or TCP socket, decodes
// incoming messages into readings, persists them, and answers Query
// records with outbound order messages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"astmgw/astm"
	"astmgw/config"
	"astmgw/session"
	"astmgw/store"
	"astmgw/transport"
)

var (
	configPath = pflag.StringP("config", "c", "", "Path to a YAML config file")
	verbose    = pflag.BoolP("verbose", "v", false, "Enable debug logging")
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath, pflag.CommandLine)
	if err != nil {
		logger.Fatal("bad configuration", "err", err)
	}

	opener, err := buildOpener(cfg)
	if err != nil {
		logger.Fatal("failed to set up transport", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gateway", "mode", cfg.Mode, "machine", cfg.MachineName)

	backing := store.NewMemoryStore()
	sink := astm.NewLogSink(logger)

	if err := session.RunWithReconnect(ctx, opener, backing, sink, logger, session.Config{
		MachineName: cfg.MachineName,
		NetworkAck:  cfg.NetworkAck,
	}); err != nil && ctx.Err() == nil {
		logger.Fatal("gateway exited", "err", err)
	}

	logger.Info("gateway shut down")
}

func buildOpener(cfg config.Config) (transport.Opener, error) {
	switch cfg.Mode {
	case "serial":
		return transport.SerialOpener(transport.SerialConfig{
			Device:      cfg.SerialDevice,
			Baud:        cfg.SerialBaud,
			DataBits:    cfg.SerialDataBits,
			Parity:      cfg.SerialParity,
			StopBits:    cfg.SerialStopBits,
			ReadTimeout: 200 * time.Millisecond,
		}), nil

	case "tcp":
		switch cfg.TCPRole {
		case "server":
			return transport.OpenTCPServer(transport.TCPConfig{Role: cfg.TCPRole, Address: cfg.TCPAddress})
		case "client":
			return transport.TCPClientOpener(transport.TCPConfig{Role: cfg.TCPRole, Address: cfg.TCPAddress}), nil
		default:
			return nil, fmt.Errorf("unknown tcp role %q", cfg.TCPRole)
		}

	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}
}
