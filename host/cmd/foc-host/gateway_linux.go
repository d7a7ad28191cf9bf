//go:build linux

package main

import (
	"context"
	"fmt"

	"go.einride.tech/can/pkg/socketcan"
)

func dialGateway(ctx context.Context, iface string, node uint8, ctl controller) (*gateway, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &gateway{
		node:  node,
		ctl:   ctl,
		tx:    socketcan.NewTransmitter(conn),
		rx:    socketcan.NewReceiver(conn),
		close: conn.Close,
	}, nil
}
