// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gps_forwarder/internal/config"
	"github.com/relabs-tech/gps_forwarder/internal/logger"
	"github.com/relabs-tech/gps_forwarder/internal/monitor"
)

const (
	panelWidth  = 128
	panelHeight = 64
	lineHeight  = 13
)

// RunDisplay shows the latest fix from hub on an SSD1306 panel until ctx is
// cancelled.
func RunDisplay(ctx context.Context, cfg *config.Config, hub *monitor.Hub) error {
	log := logger.Component("display")

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Info().Str("bus", bus.String()).Msg("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Warn().Err(err).Msg("display: error showing splash")
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), renderFix(hub.Snapshot()), image.Point{}); err != nil {
				log.Warn().Err(err).Msg("display: error updating")
			}
		}
	}
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, panelWidth, panelHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, row int, text string) {
	d.Dot = fixed.P(x, row*lineHeight)
	d.DrawString(text)
}

// hemisphere renders a signed coordinate as magnitude plus N/S or E/W.
func hemisphere(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
	}
	return fmt.Sprintf("%.6f%s", math.Abs(v), dir)
}

func renderFix(s monitor.Snapshot) *image1bit.VerticalLSB {
	img, d := newCanvas()

	if !s.HaveFix {
		drawLine(d, 0, 2, "GPS Position")
		drawLine(d, 0, 3, "Waiting...")
		return img
	}

	drawLine(d, 0, 1, hemisphere(s.Fix.Latitude, "N", "S"))
	drawLine(d, 0, 2, hemisphere(s.Fix.Longitude, "E", "W"))
	if s.Fix.Time != "" {
		drawLine(d, 0, 3, "UTC "+s.Fix.Time)
	}
	drawLine(d, 0, 4, fmt.Sprintf("Sent:%d Fail:%d", s.Stats.Delivered, s.Stats.Failed))
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 2, "GPS Forwarder")
	drawLine(d, 5, 3, "Looking for")
	drawLine(d, 5, 4, "satellites...")
	return img
}
