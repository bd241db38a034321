// Package config loads device configuration.
//
// Values are layered: built-in defaults, then the TOML file (if present),
// then RFIDGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	DriverSim    = "sim"
	DriverPeriph = "periph"

	DefaultPath = "/etc/rfidgate/config.toml"
)

type Config struct {
	Store     StoreConfig     `toml:"store" envPrefix:"STORE_"`
	Door      DoorConfig      `toml:"door" envPrefix:"DOOR_"`
	Provision ProvisionConfig `toml:"provision" envPrefix:"PROVISION_"`
	Hardware  HardwareConfig  `toml:"hardware" envPrefix:"HW_"`
	AP        APConfig        `toml:"access_point" envPrefix:"AP_"`
	LogPrefix string          `toml:"log_prefix" env:"LOG_PREFIX"`
}

type StoreConfig struct {
	Backend string `toml:"backend" env:"BACKEND"`
	// Path is uids.txt for the file backend, the database file for sqlite.
	Path  string `toml:"path" env:"PATH"`
	DSN   string `toml:"dsn" env:"DSN"`
	Index bool   `toml:"index" env:"INDEX"`
}

type DoorConfig struct {
	UnlockFor      time.Duration `toml:"unlock_for" env:"UNLOCK_FOR"`
	PollInterval   time.Duration `toml:"poll_interval" env:"POLL_INTERVAL"`
	ExtendOnRescan bool          `toml:"extend_on_rescan" env:"EXTEND_ON_RESCAN"`
}

type ProvisionConfig struct {
	Listen             string        `toml:"listen" env:"LISTEN"`
	ArmWindow          time.Duration `toml:"arm_window" env:"ARM_WINDOW"`
	IdleTimeout        time.Duration `toml:"idle_timeout" env:"IDLE_TIMEOUT"`
	RateLimitPerMinute int           `toml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	RateLimitBurst     int           `toml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

type HardwareConfig struct {
	Driver      string        `toml:"driver" env:"DRIVER"`
	SPIPort     string        `toml:"spi_port" env:"SPI_PORT"`
	ResetPin    string        `toml:"reset_pin" env:"RESET_PIN"`
	IRQPin      string        `toml:"irq_pin" env:"IRQ_PIN"`
	LockPin     string        `toml:"lock_pin" env:"LOCK_PIN"`
	BuzzerPin   string        `toml:"buzzer_pin" env:"BUZZER_PIN"`
	ButtonPin   string        `toml:"button_pin" env:"BUTTON_PIN"`
	Debounce    time.Duration `toml:"debounce" env:"DEBOUNCE"`
	ReadTimeout time.Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
}

type APConfig struct {
	Enabled    bool   `toml:"enabled" env:"ENABLED"`
	Interface  string `toml:"interface" env:"INTERFACE"`
	SSID       string `toml:"ssid" env:"SSID"`
	Passphrase string `toml:"passphrase" env:"PASSPHRASE"`
	Channel    int    `toml:"channel" env:"CHANNEL"`
	Hostapd    string `toml:"hostapd" env:"HOSTAPD"`
	ConfPath   string `toml:"conf_path" env:"CONF_PATH"`
}

func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "/var/lib/rfidgate/uids.txt",
		},
		Door: DoorConfig{
			UnlockFor:    7 * time.Second,
			PollInterval: 200 * time.Millisecond,
		},
		Provision: ProvisionConfig{
			Listen:             ":80",
			ArmWindow:          10 * time.Second,
			IdleTimeout:        5 * time.Minute,
			RateLimitPerMinute: 120,
			RateLimitBurst:     20,
		},
		Hardware: HardwareConfig{
			Driver:      DriverSim,
			SPIPort:     "",
			ResetPin:    "GPIO25",
			IRQPin:      "GPIO24",
			LockPin:     "GPIO17",
			BuzzerPin:   "GPIO18",
			ButtonPin:   "GPIO27",
			Debounce:    50 * time.Millisecond,
			ReadTimeout: 50 * time.Millisecond,
		},
		AP: APConfig{
			Interface:  "wlan0",
			SSID:       "RFID register",
			Passphrase: "robotics",
			Channel:    6,
			Hostapd:    "hostapd",
			ConfPath:   "/run/rfidgate/hostapd.conf",
		},
		LogPrefix: "rfidgate: ",
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "RFIDGATE_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("invalid store.path: required for backend %q", c.Store.Backend)
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("invalid store.dsn: required for backend \"postgres\"")
		}
	default:
		return fmt.Errorf("invalid store.backend %q: must be file, sqlite or postgres", c.Store.Backend)
	}
	for name, d := range map[string]time.Duration{
		"door.unlock_for":        c.Door.UnlockFor,
		"door.poll_interval":     c.Door.PollInterval,
		"provision.arm_window":   c.Provision.ArmWindow,
		"provision.idle_timeout": c.Provision.IdleTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be > 0", name)
		}
	}
	switch c.Hardware.Driver {
	case DriverSim, DriverPeriph:
	default:
		return fmt.Errorf("invalid hardware.driver %q: must be sim or periph", c.Hardware.Driver)
	}
	if c.AP.Enabled {
		if l := len(c.AP.Passphrase); l < 8 || l > 63 {
			return errors.New("invalid access_point.passphrase: must be 8..63 characters")
		}
		if c.AP.SSID == "" {
			return errors.New("invalid access_point.ssid: must not be empty")
		}
	}
	return nil
}

// Write saves c as TOML, used by rfidctl to seed a config file.
func Write(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
