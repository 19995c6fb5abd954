// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package display

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

var textFace = basicfont.Face7x13

// OLED renders on SSD1306 panel attached over I2C, ex 128x32 module on Raspberry Pi bus 1
type OLED struct {
	mu  sync.Mutex
	bus i2c.BusCloser
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
	log zerolog.Logger
}

// OpenOLED initializes host drivers and opens panel on I2C bus. Empty bus name picks first bus.
func OpenOLED(busName string, width, height int) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	opts := ssd1306.DefaultOpts
	opts.W = width
	opts.H = height
	// 32 rows panels are wired with sequential COM pins
	opts.Sequential = height == 32

	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("init ssd1306: %w", err)
	}

	return &OLED{
		bus: bus,
		dev: dev,
		img: image1bit.NewVerticalLSB(dev.Bounds()),
		log: log.Logger.With().Str("display", "ssd1306").Logger(),
	}, nil
}

func (o *OLED) ShowMessage(line1, line2 string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	renderMessage(o.img, line1, line2)
	o.flush()
}

func (o *OLED) ShowCountdown(remaining int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	renderCountdown(o.img, remaining)
	o.flush()
}

func (o *OLED) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	clearImage(o.img)
	o.flush()
}

// Close blanks panel and releases bus
func (o *OLED) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.dev.Halt(); err != nil {
		o.log.Error().Err(err).Msg("Failed to halt display")
	}
	return o.bus.Close()
}

func (o *OLED) flush() {
	if err := o.dev.Draw(o.dev.Bounds(), o.img, image.Point{}); err != nil {
		o.log.Error().Err(err).Msg("Failed to draw")
	}
}

func clearImage(img draw.Image) {
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.Off}, image.Point{}, draw.Src)
}

func drawText(img draw.Image, x, baseline int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: textFace,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// renderMessage draws two lines, each in own half of panel
func renderMessage(img draw.Image, line1, line2 string) {
	clearImage(img)
	b := img.Bounds()
	half := b.Dy() / 2
	ascent := textFace.Ascent
	drawText(img, b.Min.X, b.Min.Y+ascent, line1)
	drawText(img, b.Min.X, b.Min.Y+half+ascent, line2)
}

// renderCountdown draws title and centered MM:SS
func renderCountdown(img draw.Image, remaining int) {
	clearImage(img)
	b := img.Bounds()
	half := b.Dy() / 2
	ascent := textFace.Ascent
	drawText(img, b.Min.X, b.Min.Y+ascent, CountdownTitle)

	s := FormatCountdown(remaining)
	width := font.MeasureString(textFace, s).Ceil()
	x := b.Min.X + (b.Dx()-width)/2
	drawText(img, x, b.Min.Y+half+ascent, s)
}
