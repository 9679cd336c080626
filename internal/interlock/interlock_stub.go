//go:build !linux

package interlock

import "fmt"

func openLine(cfg Config) (line, func() error, error) {
	return nil, nil, fmt.Errorf("interlock: gpio unsupported on this platform")
}
