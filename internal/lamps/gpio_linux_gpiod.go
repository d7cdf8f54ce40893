//go:build linux && (arm || arm64)

package lamps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openLamp drives the given BCM GPIO as a digital output through the Linux
// GPIO character device.
func openLamp(pin int) (lampDriver, error) {
	if pin < 0 {
		return nil, fmt.Errorf("lamps: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO18", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if name := e.Name(); strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("arbiterd-lamp"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodLamp{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("lamps: gpio line %q not found (or busy)", lineName)
}

var openLampFn = openLamp

type gpiodLamp struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLamp) Set(on bool) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("lamps: gpio driver not initialized")
	}
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpiodLamp) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
