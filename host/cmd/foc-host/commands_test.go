package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.einride.tech/can"

	"gofoc/core"
	"gofoc/protocol"
	"gofoc/telemetry"
)

// fakeController records the calls it receives.
type fakeController struct {
	calls  []string
	status core.Snapshot
	err    error
}

func (f *fakeController) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeController) AdvanceMode(ctx context.Context) error { return f.record("advance") }
func (f *fakeController) Stop(ctx context.Context) error        { return f.record("stop") }
func (f *fakeController) SetTargetSpeed(ctx context.Context, rpm float32) error {
	return f.record("speed %g", rpm)
}
func (f *fakeController) SetTargetCurrents(ctx context.Context, id, iq float32) error {
	return f.record("currents %g %g", id, iq)
}
func (f *fakeController) ClearFault(ctx context.Context) error { return f.record("clear") }
func (f *fakeController) SetAngleSource(ctx context.Context, src core.AngleSourceKind) error {
	return f.record("source %v", src)
}
func (f *fakeController) Align(ctx context.Context) error { return f.record("align") }
func (f *fakeController) Status(ctx context.Context) (core.Snapshot, error) {
	f.record("status")
	return f.status, f.err
}
func (f *fakeController) Send(ctx context.Context, id uint16, args func(protocol.OutputBuffer)) error {
	out := protocol.NewScratchOutput()
	if args != nil {
		args(out)
	}
	return f.record("send %d %x", id, out.Result())
}

func TestExecLine(t *testing.T) {
	tests := []struct {
		line string
		call string
	}{
		{"advance", "advance"},
		{"stop", "stop"},
		{"speed 1500", "speed 1500"},
		{"speed '-250.5'", "speed -250.5"},
		{"currents 0 0.75", "currents 0 0.75"},
		{"clear", "clear"},
		{"source observer", "source observer"},
		{"source encoder", "source sensor"},
		{"align", "align"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			fc := &fakeController{}
			var out bytes.Buffer
			if err := execLine(context.Background(), fc, &out, tt.line); err != nil {
				t.Fatalf("execLine(%q) failed: %v", tt.line, err)
			}
			if len(fc.calls) != 1 || fc.calls[0] != tt.call {
				t.Errorf("Expected call %q, got %v", tt.call, fc.calls)
			}
		})
	}
}

func TestExecLineErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"spin", errUnknown},
		{"speed", errUsage},
		{"currents 1", errUsage},
		{"quit", errQuit},
		{"q", errQuit},
	}
	for _, tt := range tests {
		fc := &fakeController{}
		err := execLine(context.Background(), fc, &bytes.Buffer{}, tt.line)
		if !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.line, tt.want, err)
		}
		if len(fc.calls) != 0 {
			t.Errorf("%q: expected no controller calls, got %v", tt.line, fc.calls)
		}
	}

	fc := &fakeController{}
	if err := execLine(context.Background(), fc, &bytes.Buffer{}, "speed fast"); err == nil {
		t.Errorf("Expected an error for a non-numeric speed")
	}
	if err := execLine(context.Background(), fc, &bytes.Buffer{}, "source hall"); err == nil {
		t.Errorf("Expected an error for an unknown angle source")
	}
	if err := execLine(context.Background(), fc, &bytes.Buffer{}, ""); err != nil {
		t.Errorf("Expected an empty line to be ignored, got %v", err)
	}
}

func TestStatusAndHelpOutput(t *testing.T) {
	fc := &fakeController{status: core.Snapshot{Mode: core.ModeSpeedClosedLoop, SpeedFilt: 1234.5, Aligned: true}}
	var out bytes.Buffer
	if err := execLine(context.Background(), fc, &out, "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out.String(), "mode=speed_loop") || !strings.Contains(out.String(), "speed=1234.5") {
		t.Errorf("Unexpected status output:\n%s", out.String())
	}

	out.Reset()
	execLine(context.Background(), fc, &out, "help")
	for _, cmd := range commands {
		if !strings.Contains(out.String(), cmd.name) {
			t.Errorf("Expected %q in help output", cmd.name)
		}
	}
}

type fakeTransmitter struct {
	frames []can.Frame
}

func (f *fakeTransmitter) TransmitFrame(ctx context.Context, fr can.Frame) error {
	f.frames = append(f.frames, fr)
	return nil
}

func TestGatewayForwardsCommands(t *testing.T) {
	fc := &fakeController{}
	g := &gateway{node: 3, ctl: fc}
	ctx := context.Background()

	f, err := telemetry.EncodeCANCommand(3, protocol.MsgSetTargetSpeed, 1500)
	if err != nil {
		t.Fatalf("EncodeCANCommand failed: %v", err)
	}
	if err := g.handleFrame(ctx, f); err != nil {
		t.Fatalf("handleFrame failed: %v", err)
	}
	// another node's command is ignored
	other, _ := telemetry.EncodeCANCommand(4, protocol.MsgStop)
	g.handleFrame(ctx, other)
	align, _ := telemetry.EncodeCANCommand(3, protocol.MsgAlign)
	g.handleFrame(ctx, align)

	want := protocol.NewScratchOutput()
	telemetry.DecodeCANCommand(f, want)
	args := want.Result()
	protocol.DecodeVLQUint(&args)
	expected := []string{
		fmt.Sprintf("send %d %x", protocol.MsgSetTargetSpeed, args),
		"align",
	}
	if len(fc.calls) != len(expected) {
		t.Fatalf("Expected calls %v, got %v", expected, fc.calls)
	}
	for i := range expected {
		if fc.calls[i] != expected[i] {
			t.Errorf("call %d: expected %q, got %q", i, expected[i], fc.calls[i])
		}
	}
}

func TestGatewayPublishesStatus(t *testing.T) {
	fc := &fakeController{status: core.Snapshot{Mode: core.ModeCurrentClosedLoop, SpeedFilt: 800}}
	tx := &fakeTransmitter{}
	g := &gateway{node: 2, ctl: fc, tx: tx}

	if err := g.publish(context.Background()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(tx.frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(tx.frames))
	}
	if tx.frames[0].ID != telemetry.CANStatusBase+2 || tx.frames[1].ID != telemetry.CANVectorBase+2 {
		t.Errorf("Unexpected frame IDs 0x%x 0x%x", tx.frames[0].ID, tx.frames[1].ID)
	}
	var s core.Snapshot
	if _, err := telemetry.DecodeCAN(tx.frames[0], &s); err != nil {
		t.Fatalf("DecodeCAN failed: %v", err)
	}
	if s.Mode != core.ModeCurrentClosedLoop {
		t.Errorf("Expected current loop mode, got %v", s.Mode)
	}

	fc.err = errors.New("link down")
	if err := g.publish(context.Background()); err == nil {
		t.Errorf("Expected the status error to propagate")
	}
}
