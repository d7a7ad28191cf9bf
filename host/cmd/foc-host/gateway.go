package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.einride.tech/can"

	"gofoc/protocol"
	"gofoc/telemetry"
)

type frameTransmitter interface {
	TransmitFrame(ctx context.Context, f can.Frame) error
}

type frameReceiver interface {
	Receive() bool
	Frame() can.Frame
	Err() error
}

// gateway bridges a CAN bus to the serial link: command frames addressed to
// node are forwarded to the controller and its status is published as
// status and vector frames.
type gateway struct {
	node  uint8
	ctl   controller
	tx    frameTransmitter
	rx    frameReceiver
	close func() error
}

// handleFrame forwards one command frame. Frames for other nodes and non
// command frames are ignored.
func (g *gateway) handleFrame(ctx context.Context, f can.Frame) error {
	if f.IsExtended || f.ID != telemetry.CANCommandBase+uint32(g.node) {
		return nil
	}
	out := protocol.NewScratchOutput()
	if _, err := telemetry.DecodeCANCommand(f, out); err != nil {
		return err
	}
	payload := append([]byte(nil), out.Result()...)
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return err
	}
	if uint16(id) == protocol.MsgAlign {
		return g.ctl.Align(ctx)
	}
	return g.ctl.Send(ctx, uint16(id), func(o protocol.OutputBuffer) {
		o.Output(payload)
	})
}

// publish sends one status and one vector frame.
func (g *gateway) publish(ctx context.Context) error {
	s, err := g.ctl.Status(ctx)
	if err != nil {
		return err
	}
	for _, f := range telemetry.EncodeCAN(g.node, s) {
		if err := g.tx.TransmitFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit 0x%03x: %w", f.ID, err)
		}
	}
	return nil
}

// Run publishes status every period and forwards commands until ctx ends.
func (g *gateway) Run(ctx context.Context, period time.Duration) {
	go func() {
		for g.rx.Receive() {
			if err := g.handleFrame(ctx, g.rx.Frame()); err != nil {
				fmt.Fprintf(os.Stderr, "can: %v\n", err)
			}
		}
		if err := g.rx.Err(); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "can: receive: %v\n", err)
		}
	}()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.publish(ctx); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "can: %v\n", err)
			}
		}
	}
}

func (g *gateway) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}
