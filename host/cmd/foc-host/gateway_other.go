//go:build !linux

package main

import (
	"context"
	"errors"
)

func dialGateway(ctx context.Context, iface string, node uint8, ctl controller) (*gateway, error) {
	return nil, errors.New("SocketCAN is only available on linux")
}
