// Package config assembles gateway configuration from a YAML file
// with command-line flag overrides, covering the configuration
// surface described in §6: transport mode and role, network-ack
// dialect, serial line parameters, and the machine identity used in
// outbound headers and qualified reading names.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	// MachineName identifies this analyzer connection (§6).
	MachineName string `yaml:"machine_name"`

	// Mode is "serial" or "tcp".
	Mode string `yaml:"mode"`
	// NetworkAck selects the send-side dialect; conventionally true
	// for tcp mode, false for serial, but independently configurable
	// since some serial-attached analyzers still expect it (§4.4).
	NetworkAck bool `yaml:"network_ack"`

	// Serial settings, used when Mode == "serial".
	SerialDevice   string  `yaml:"serial_device"`
	SerialBaud     int     `yaml:"serial_baud"`
	SerialDataBits byte    `yaml:"serial_data_bits"`
	SerialParity   string  `yaml:"serial_parity"`
	SerialStopBits float32 `yaml:"serial_stop_bits"`

	// TCP settings, used when Mode == "tcp".
	TCPRole    string `yaml:"tcp_role"` // "server" or "client"
	TCPAddress string `yaml:"tcp_address"`
}

// Default returns the zero-value configuration with sensible defaults
// filled in.
func Default() Config {
	return Config{
		MachineName:    "ANALYZER",
		Mode:           "serial",
		NetworkAck:     false,
		SerialDevice:   "/dev/ttyUSB0",
		SerialBaud:     9600,
		SerialDataBits: 8,
		SerialParity:   "N",
		SerialStopBits: 1,
		TCPRole:        "server",
		TCPAddress:     ":3000",
	}
}

// Load reads a YAML file at path (if it exists) into Default(), then
// applies flag overrides from fs. A missing file is not an error: a
// deployment may configure entirely from flags.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Flags alone are a valid configuration.
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyFlags(&cfg, fs)

	if cfg.Mode != "serial" && cfg.Mode != "tcp" {
		return Config{}, fmt.Errorf("config: mode must be \"serial\" or \"tcp\", got %q", cfg.Mode)
	}
	if cfg.Mode == "tcp" && cfg.TCPRole != "server" && cfg.TCPRole != "client" {
		return Config{}, fmt.Errorf("config: tcp_role must be \"server\" or \"client\", got %q", cfg.TCPRole)
	}

	return cfg, nil
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	if v, err := fs.GetString("machine-name"); err == nil && fs.Changed("machine-name") {
		cfg.MachineName = v
	}
	if v, err := fs.GetString("mode"); err == nil && fs.Changed("mode") {
		cfg.Mode = v
	}
	if v, err := fs.GetBool("network-ack"); err == nil && fs.Changed("network-ack") {
		cfg.NetworkAck = v
	}
	if v, err := fs.GetString("serial-device"); err == nil && fs.Changed("serial-device") {
		cfg.SerialDevice = v
	}
	if v, err := fs.GetInt("serial-baud"); err == nil && fs.Changed("serial-baud") {
		cfg.SerialBaud = v
	}
	if v, err := fs.GetString("tcp-role"); err == nil && fs.Changed("tcp-role") {
		cfg.TCPRole = v
	}
	if v, err := fs.GetString("tcp-address"); err == nil && fs.Changed("tcp-address") {
		cfg.TCPAddress = v
	}
}

// RegisterFlags declares the override flags this package reads back in
// Load. Call before fs.Parse.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("machine-name", "", "Analyzer identifier for outbound headers and qualified reading names")
	fs.String("mode", "", `Transport mode: "serial" or "tcp"`)
	fs.Bool("network-ack", false, "Use the network-ack send dialect (standalone STX/ETX round trips)")
	fs.String("serial-device", "", "Serial device path")
	fs.Int("serial-baud", 0, "Serial baud rate")
	fs.String("tcp-role", "", `TCP role: "server" (listen) or "client" (dial out)`)
	fs.String("tcp-address", "", "TCP listen or dial address")
}
