// Package control interprets text commands against a solenoid driver. It is
// the line protocol spoken on the run command's stdin.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/sirupsen/logrus"

	"keyplayer/internal/solenoid"
)

// Controller executes commands and writes replies to Out.
type Controller struct {
	drv    *solenoid.Driver
	out    io.Writer
	log    *logrus.Entry
	parser *participle.Parser[script]
}

func New(drv *solenoid.Driver, out io.Writer, log *logrus.Entry) (*Controller, error) {
	p, err := buildParser()
	if err != nil {
		return nil, fmt.Errorf("control: build parser: %w", err)
	}
	return &Controller{drv: drv, out: out, log: log, parser: p}, nil
}

// Exec runs every command on one line and stops at the first failure.
func (c *Controller) Exec(line string) error {
	s, err := c.parser.ParseString("", line)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	for _, cmd := range s.Commands {
		if err := c.exec(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Serve executes lines from r until EOF or ctx is done. Command failures are
// reported on Out and do not stop the loop; only read errors are returned.
func (c *Controller) Serve(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := c.Exec(line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
				if c.log != nil {
					c.log.WithError(err).WithField("line", line).Debug("command failed")
				}
				continue
			}
		}
	}
}

func (c *Controller) exec(cmd *command) error {
	switch strings.ToLower(cmd.Verb) {
	case "on":
		ch, err := c.channelArg(cmd, 0, 1)
		if err != nil {
			return err
		}
		return c.drv.On(ch)
	case "off":
		ch, err := c.channelArg(cmd, 0, 1)
		if err != nil {
			return err
		}
		return c.drv.Off(ch)
	case "toggle":
		ch, err := c.channelArg(cmd, 0, 1)
		if err != nil {
			return err
		}
		return c.drv.Toggle(ch)
	case "pulse":
		ch, err := c.channelArg(cmd, 0, 2)
		if err != nil {
			return err
		}
		d, err := durationArg(cmd, 1)
		if err != nil {
			return err
		}
		return c.drv.StartPulse(ch, d)
	case "allon":
		if err := wantArgs(cmd, 0); err != nil {
			return err
		}
		return c.drv.AllOn()
	case "alloff":
		if err := wantArgs(cmd, 0); err != nil {
			return err
		}
		return c.drv.AllOff()
	case "board":
		if err := wantArgs(cmd, 2); err != nil {
			return err
		}
		b, err := numberArg(cmd, 0)
		if err != nil {
			return err
		}
		mask, err := numberArg(cmd, 1)
		if err != nil {
			return err
		}
		return c.drv.SetBoardChannels(b, mask)
	case "stop":
		if err := wantArgs(cmd, 0); err != nil {
			return err
		}
		return c.drv.EmergencyStop()
	case "reset":
		if err := wantArgs(cmd, 0); err != nil {
			return err
		}
		c.drv.ResetAllStats()
		return nil
	case "status":
		return c.status(cmd)
	case "read":
		if err := wantArgs(cmd, 1); err != nil {
			return err
		}
		b, err := numberArg(cmd, 0)
		if err != nil {
			return err
		}
		v, err := c.drv.ReadBack(b)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "board %d latch=0x%02X cached=0x%02X\n", b, v, c.drv.BoardMask(b))
		return nil
	}
	return fmt.Errorf("%s: unknown command %q", cmd.Pos, cmd.Verb)
}

func (c *Controller) status(cmd *command) error {
	if len(cmd.Args) == 0 {
		for b := 0; b < c.drv.BoardCount(); b++ {
			fmt.Fprintf(c.out, "board %d addr=0x%02X mask=%08b\n", b, c.drv.BoardAddress(uint8(b)), c.drv.BoardMask(uint8(b)))
		}
		return nil
	}
	ch, err := c.channelArg(cmd, 0, 1)
	if err != nil {
		return err
	}
	st, ok := c.drv.Stats(ch)
	if !ok {
		return &solenoid.Error{Code: solenoid.CodeInvalidChannel, Channel: ch}
	}
	fmt.Fprintf(c.out, "ch %d board %d pin %d on=%t on_for=%s total=%s activations=%d duty=%.3f\n",
		st.Channel, st.Board, st.Pin, st.On, st.OnDuration, st.TotalOnTime, st.Activations, st.DutyCycle)
	return nil
}

func wantArgs(cmd *command, n int) error {
	if len(cmd.Args) != n {
		return fmt.Errorf("%s: %s takes %d argument(s), got %d", cmd.Pos, cmd.Verb, n, len(cmd.Args))
	}
	return nil
}

func (c *Controller) channelArg(cmd *command, i, n int) (solenoid.Channel, error) {
	if err := wantArgs(cmd, n); err != nil {
		return 0, err
	}
	v, err := numberArg(cmd, i)
	if err != nil {
		return 0, err
	}
	return solenoid.Channel(v), nil
}

func numberArg(cmd *command, i int) (uint8, error) {
	a := cmd.Args[i]
	if a.Number == nil {
		return 0, fmt.Errorf("%s: %s argument %d must be a number", cmd.Pos, cmd.Verb, i+1)
	}
	v, err := strconv.ParseUint(*a.Number, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %s argument %d: %w", cmd.Pos, cmd.Verb, i+1, err)
	}
	return uint8(v), nil
}

func durationArg(cmd *command, i int) (time.Duration, error) {
	a := cmd.Args[i]
	if a.Duration == nil {
		return 0, fmt.Errorf("%s: %s argument %d must be a duration like 120ms", cmd.Pos, cmd.Verb, i+1)
	}
	return time.ParseDuration(*a.Duration)
}
