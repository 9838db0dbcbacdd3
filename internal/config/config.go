// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration values.
type Config struct {
	// GPS serial link
	GPSSerialPort   string
	GPSBaudRate     uint   `validate:"gt=0"`
	GPSDataBits     uint   `validate:"min=5,max=8"`
	GPSStopBits     uint   `validate:"min=1,max=2"`
	GPSParity       string `validate:"oneof=none odd even"`
	GPSReadSize     int    `validate:"gt=0"`
	GPSMaxLineBytes int    `validate:"gte=0"`

	// ReplayFile is set from the command line, never from the file.
	ReplayFile string
	// serialUnused is set for binaries that never open the GPS port.
	serialUnused bool

	// Collector
	ForwardURL       string `validate:"required,url,startswith=http"`
	ForwardTimeoutMS int    `validate:"gt=0"`

	// MQTT mirror (optional)
	MQTTBroker            string
	MQTTClientIDForwarder string `validate:"required_with=MQTTBroker"`
	MQTTClientIDConsole   string
	TopicGPS              string `validate:"required_with=MQTTBroker"`

	// Web monitor; 0 disables it
	WebServerPort int `validate:"gte=0,lte=65535"`

	// Display; an empty bus name opens the first I2C bus.
	// DisplayUpdateInterval is in milliseconds.
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval int `validate:"gt=0"`

	// RawClearInterval is how often the raw-data view is emptied (milliseconds, 0 = never).
	RawClearInterval int `validate:"gte=0"`

	// Logging
	LogLevel  string `validate:"oneof=trace debug info warn warning error"`
	LogFormat string `validate:"oneof=console json"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get().
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var validate = validator.New()

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		GPSBaudRate:           9600,
		GPSDataBits:           8,
		GPSStopBits:           1,
		GPSParity:             "none",
		GPSReadSize:           256,
		ForwardURL:            "http://localhost:3000/recevoir_coordinates",
		ForwardTimeoutMS:      5000,
		MQTTClientIDForwarder: "gps-forwarder",
		MQTTClientIDConsole:   "gps-console",
		TopicGPS:              "gps/fix",
		DisplayUpdateInterval: 500,
		RawClearInterval:      2000,
		LogLevel:              "info",
		LogFormat:             "console",
	}
}

// Override adjusts a parsed Config before validation, e.g. from flags.
type Override func(*Config)

// WithReplayFile makes the serial port optional and reads from path instead.
func WithReplayFile(path string) Override {
	return func(c *Config) { c.ReplayFile = path }
}

// WithoutSerial is for binaries that never open the GPS port, so
// GPS_SERIAL_PORT is not required.
func WithoutSerial() Override {
	return func(c *Config) { c.serialUnused = true }
}

// Load reads the configuration file, applies overrides and returns a
// validated Config.
func Load(configPath string, overrides ...Override) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg, err := Parse(file)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads KEY=VALUE lines on top of Default(). Blank lines and lines
// starting with '#' are skipped. The result is not validated.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		return parseUint(key, value, &c.GPSBaudRate)
	case "GPS_DATA_BITS":
		return parseUint(key, value, &c.GPSDataBits)
	case "GPS_STOP_BITS":
		return parseUint(key, value, &c.GPSStopBits)
	case "GPS_PARITY":
		c.GPSParity = strings.ToLower(value)
	case "GPS_READ_SIZE":
		return parseInt(key, value, &c.GPSReadSize)
	case "GPS_MAX_LINE_BYTES":
		return parseInt(key, value, &c.GPSMaxLineBytes)

	// Collector
	case "FORWARD_URL":
		c.ForwardURL = value
	case "FORWARD_TIMEOUT_MS":
		return parseInt(key, value, &c.ForwardTimeoutMS)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_FORWARDER":
		c.MQTTClientIDForwarder = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Web Server
	case "WEB_SERVER_PORT":
		return parseInt(key, value, &c.WebServerPort)

	// Display
	case "DISPLAY_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		c.DisplayEnabled = b
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		return parseInt(key, value, &c.DisplayUpdateInterval)
	case "RAW_CLEAR_INTERVAL":
		return parseInt(key, value, &c.RawClearInterval)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parseUint(key, value string, dst *uint) error {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = uint(v)
	return nil
}

// Validate checks field constraints and reports the first violation using
// the config file key names.
func (c *Config) Validate() error {
	if c.GPSSerialPort == "" && c.ReplayFile == "" && !c.serialUnused {
		return fmt.Errorf("%s is invalid (required)", keyName("GPSSerialPort"))
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%s is invalid (%s %s)", keyName(fe.Field()), fe.Tag(), fe.Param())
	}
	return err
}

var keyNames = map[string]string{
	"GPSSerialPort":         "GPS_SERIAL_PORT",
	"GPSBaudRate":           "GPS_BAUD_RATE",
	"GPSDataBits":           "GPS_DATA_BITS",
	"GPSStopBits":           "GPS_STOP_BITS",
	"GPSParity":             "GPS_PARITY",
	"GPSReadSize":           "GPS_READ_SIZE",
	"GPSMaxLineBytes":       "GPS_MAX_LINE_BYTES",
	"ForwardURL":            "FORWARD_URL",
	"ForwardTimeoutMS":      "FORWARD_TIMEOUT_MS",
	"MQTTClientIDForwarder": "MQTT_CLIENT_ID_FORWARDER",
	"TopicGPS":              "TOPIC_GPS",
	"WebServerPort":         "WEB_SERVER_PORT",
	"DisplayUpdateInterval": "DISPLAY_UPDATE_INTERVAL",
	"RawClearInterval":      "RAW_CLEAR_INTERVAL",
	"LogLevel":              "LOG_LEVEL",
	"LogFormat":             "LOG_FORMAT",
}

func keyName(field string) string {
	if k, ok := keyNames[field]; ok {
		return k
	}
	return field
}

// ForwardTimeout returns the per-request collector timeout.
func (c *Config) ForwardTimeout() time.Duration {
	return time.Duration(c.ForwardTimeoutMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string, overrides ...Override) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath, overrides...)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
