package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/shlex"

	"gofoc/core"
	"gofoc/protocol"
)

// controller is the command surface of link.Client.
type controller interface {
	AdvanceMode(ctx context.Context) error
	Stop(ctx context.Context) error
	SetTargetSpeed(ctx context.Context, rpm float32) error
	SetTargetCurrents(ctx context.Context, id, iq float32) error
	ClearFault(ctx context.Context) error
	SetAngleSource(ctx context.Context, src core.AngleSourceKind) error
	Align(ctx context.Context) error
	Status(ctx context.Context) (core.Snapshot, error)
	Send(ctx context.Context, id uint16, args func(protocol.OutputBuffer)) error
}

var (
	errUsage   = errors.New("usage")
	errUnknown = errors.New("unknown command")
	errQuit    = errors.New("quit")
)

type command struct {
	name  string
	args  string
	help  string
	nargs int
	run   func(ctx context.Context, c controller, w io.Writer, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"advance", "", "step idle -> open loop -> current loop -> speed loop -> idle", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				return c.AdvanceMode(ctx)
			}},
		{"stop", "", "force idle with zero differential voltage", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				return c.Stop(ctx)
			}},
		{"speed", "<rpm>", "set the speed target", 1,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				rpm, err := parseFloat(args[0])
				if err != nil {
					return err
				}
				return c.SetTargetSpeed(ctx, rpm)
			}},
		{"currents", "<id> <iq>", "set the d/q current targets in amperes", 2,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				id, err := parseFloat(args[0])
				if err != nil {
					return err
				}
				iq, err := parseFloat(args[1])
				if err != nil {
					return err
				}
				return c.SetTargetCurrents(ctx, id, iq)
			}},
		{"clear", "", "clear a latched fault", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				return c.ClearFault(ctx)
			}},
		{"source", "<sensor|observer>", "select the rotor angle source", 1,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				src, ok := core.ParseAngleSource(args[0])
				if !ok {
					return fmt.Errorf("unknown angle source %q", args[0])
				}
				return c.SetAngleSource(ctx, src)
			}},
		{"align", "", "run rotor offset calibration", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				fmt.Fprintln(w, "Aligning...")
				return c.Align(ctx)
			}},
		{"status", "", "print the controller state", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				s, err := c.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(w, s)
				return nil
			}},
		{"help", "", "show this help", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				printHelp(w)
				return nil
			}},
		{"quit", "", "exit", 0,
			func(ctx context.Context, c controller, w io.Writer, args []string) error {
				return errQuit
			}},
	}
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return float32(v), nil
}

func lookup(name string) (command, bool) {
	switch name {
	case "q", "exit":
		name = "quit"
	case "?":
		name = "help"
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

// execLine runs one line of input. It returns errQuit for quit.
func execLine(ctx context.Context, c controller, w io.Writer, line string) error {
	parts, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}
	cmd, ok := lookup(parts[0])
	if !ok {
		return fmt.Errorf("%w: %s (type 'help' for available commands)", errUnknown, parts[0])
	}
	if len(parts)-1 != cmd.nargs {
		return fmt.Errorf("%w: %s %s", errUsage, cmd.name, cmd.args)
	}
	return cmd.run(ctx, c, w, parts[1:])
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "\nAvailable commands:")
	for _, cmd := range commands {
		usage := cmd.name
		if cmd.args != "" {
			usage += " " + cmd.args
		}
		fmt.Fprintf(w, "  %-28s - %s\n", usage, cmd.help)
	}
	fmt.Fprintln(w)
}

func printStatus(w io.Writer, s core.Snapshot) {
	fmt.Fprintf(w, "mode=%s fault=%s source=%s aligned=%v\n", s.Mode, s.Fault, s.AngleSource, s.Aligned)
	fmt.Fprintf(w, "  speed=%.1f rpm target=%.1f ramp=%.1f\n", s.SpeedFilt, s.TargetSpeed, s.RampSpeed)
	fmt.Fprintf(w, "  id=%.3f A iq=%.3f A iq_ref=%.3f A vd=%.3f V vq=%.3f V\n",
		s.CurrentFilt.D, s.CurrentFilt.Q, s.CurrentRef.Q, s.Voltage.D, s.Voltage.Q)
	fmt.Fprintf(w, "  angle=%.3f rad vbus=%.2f V cycles=%d overruns=%d\n", s.Angle, s.BusVoltage, s.Cycles, s.Overruns)
}
