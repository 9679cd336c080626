//go:build !linux

package i2c

import (
	"fmt"
	"time"
)

type Bus struct{}

type Dev struct{}

func Open(path string) (*Bus, error) { return nil, fmt.Errorf("i2c: unsupported OS (need linux)") }

func (b *Bus) Path() string                     { return "" }
func (b *Bus) Close() error                     { return nil }
func (b *Bus) SetTimeout(d time.Duration) error { return fmt.Errorf("i2c: unsupported OS") }
func (b *Bus) SetClock(hz uint32) error         { return fmt.Errorf("i2c: unsupported OS") }
func (b *Bus) ClockHz() uint32                  { return 0 }
func (b *Bus) Probe(addr uint16) bool           { return false }
func (b *Bus) Dev(addr uint16) *Dev             { return nil }

func (d *Dev) Addr() uint16                     { return 0 }
func (d *Dev) Write(p []byte) error             { return fmt.Errorf("i2c: unsupported OS") }
func (d *Dev) Read(p []byte) error              { return fmt.Errorf("i2c: unsupported OS") }
func (d *Dev) WriteRead(w, r []byte) error      { return fmt.Errorf("i2c: unsupported OS") }
func (d *Dev) ReadRegU8(reg byte) (byte, error) { return 0, fmt.Errorf("i2c: unsupported OS") }
func (d *Dev) WriteReg(reg, value byte) error   { return fmt.Errorf("i2c: unsupported OS") }
