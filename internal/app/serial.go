// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"os"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/gps_forwarder/internal/config"
)

// serialOptions maps the GPS section of the config onto go-serial options.
// Reads block until at least one byte is available.
func serialOptions(cfg *config.Config) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              cfg.GPSBaudRate,
		DataBits:              cfg.GPSDataBits,
		StopBits:              cfg.GPSStopBits,
		MinimumReadSize:       1,
		ParityMode:            parityMode(cfg.GPSParity),
		InterCharacterTimeout: 0,
	}
}

func parityMode(s string) serial.ParityMode {
	switch s {
	case "odd":
		return serial.PARITY_ODD
	case "even":
		return serial.PARITY_EVEN
	default:
		return serial.PARITY_NONE
	}
}

// source is what a session reads from. Both the shutdown watcher and the
// normal exit path may close it.
type source struct {
	io.ReadCloser
	// port is the writable device; nil when replaying a capture.
	port io.Writer
	desc string

	once sync.Once
	err  error
}

func (s *source) Close() error {
	s.once.Do(func() { s.err = s.ReadCloser.Close() })
	return s.err
}

// openSource opens the replay file when one is configured, the serial port
// otherwise.
func openSource(cfg *config.Config) (*source, error) {
	if cfg.ReplayFile != "" {
		f, err := os.Open(cfg.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("open replay file: %w", err)
		}
		return &source{ReadCloser: f, desc: "replay " + cfg.ReplayFile}, nil
	}

	opts := serialOptions(cfg)
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", opts.PortName, err)
	}
	return &source{
		ReadCloser: port,
		port:       port,
		desc:       fmt.Sprintf("serial %s at %d baud", opts.PortName, opts.BaudRate),
	}, nil
}
