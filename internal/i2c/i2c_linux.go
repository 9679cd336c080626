//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Minimal Linux I2C implementation backed by /dev/i2c-*.
//
// We use I2C_RDWR so a register read is one combined write+read with a
// repeated start, which the port expanders require.

const (
	i2cMrd     = 0x0001
	i2cTimeout = 0x0702
	i2cRdwr    = 0x0707
)

type msg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an opened I2C adapter (e.g., /dev/i2c-1).
//
// Several Dev handles may share one Bus. Bus itself is not safe for
// concurrent transfers; the solenoid driver serializes all access.
type Bus struct {
	f       *os.File
	path    string
	clockHz uint32
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string { return b.path }

func (b *Bus) Close() error {
	if b == nil || b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// SetTimeout sets the adapter's transfer timeout. The kernel counts in
// jiffies of 10ms, so d is rounded up to the next 10ms.
func (b *Bus) SetTimeout(d time.Duration) error {
	if b == nil || b.f == nil {
		return errors.New("i2c bus is closed")
	}
	ticks := (d + 10*time.Millisecond - 1) / (10 * time.Millisecond)
	if ticks < 1 {
		ticks = 1
	}
	return unix.IoctlSetInt(int(b.f.Fd()), i2cTimeout, int(ticks))
}

// SetClock records the requested bus clock. i2c-dev cannot change the
// adapter frequency at runtime; it comes from the device tree
// (dtparam=i2c_arm_baudrate on a Pi).
func (b *Bus) SetClock(hz uint32) error {
	if b == nil {
		return errors.New("i2c bus is nil")
	}
	b.clockHz = hz
	return nil
}

func (b *Bus) ClockHz() uint32 { return b.clockHz }

// Probe reports whether a device acknowledges addr, using a one byte read.
func (b *Bus) Probe(addr uint16) bool {
	var buf [1]byte
	return b.Dev(addr).Read(buf[:]) == nil
}

func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

// Dev represents a device at a 7-bit I2C address.
type Dev struct {
	bus  *Bus
	addr uint16
}

func (d *Dev) Addr() uint16 { return d.addr }

func (d *Dev) Write(p []byte) error {
	_, err := d.tx(p, nil)
	return err
}

func (d *Dev) Read(p []byte) error {
	_, err := d.tx(nil, p)
	return err
}

func (d *Dev) WriteRead(w, r []byte) error {
	_, err := d.tx(w, r)
	return err
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.WriteRead([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	return d.Write([]byte{reg, value})
}

func (d *Dev) tx(w, r []byte) (int, error) {
	if d == nil || d.bus == nil || d.bus.f == nil {
		return 0, errors.New("i2c device is nil")
	}
	if d.addr == 0 || d.addr > 0x7F {
		return 0, fmt.Errorf("invalid i2c addr 0x%X", d.addr)
	}

	msgs := make([]msg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, msg{addr: d.addr, flags: 0, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, msg{addr: d.addr, flags: i2cMrd, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	data := rdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), uintptr(i2cRdwr), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return 0, fmt.Errorf("i2c 0x%02X: %w", d.addr, errno)
	}
	if len(r) > 0 {
		return len(r), nil
	}
	return len(w), nil
}
