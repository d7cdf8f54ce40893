//go:build !linux || (!arm && !arm64)

package lamps

import "fmt"

func openLamp(pin int) (lampDriver, error) {
	return nil, fmt.Errorf("lamps: gpio unsupported on this platform")
}

var openLampFn = openLamp
