// Package link is the host side of the controller's command link. It frames
// commands, waits for their command_result and collects status messages,
// whether requested with get_status or streamed by the firmware.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gofoc/core"
	"gofoc/protocol"
	"gofoc/telemetry"
)

var (
	ErrTimeout = errors.New("link: response timeout")
	ErrClosed  = errors.New("link: closed")
)

// DefaultTimeout bounds the wait for a command_result.
const DefaultTimeout = 2 * time.Second

// AlignTimeout covers the blocking align command.
const AlignTimeout = 15 * time.Second

// Result is one command_result message.
type Result struct {
	Cmd  uint16
	Code uint8
}

// CommandError reports a command the firmware refused.
type CommandError struct {
	Cmd  uint16
	Code uint8
}

func (e *CommandError) Error() string {
	name, ok := protocol.MessageNames[e.Cmd]
	if !ok {
		name = fmt.Sprintf("command %d", e.Cmd)
	}
	return fmt.Sprintf("%s: %s", name, protocol.ResultText(e.Code))
}

// Client talks to one controller over a byte stream.
type Client struct {
	port io.ReadWriteCloser

	seq     atomic.Uint32
	writeMu sync.Mutex
	sendMu  sync.Mutex // one command in flight

	results chan Result
	status  chan core.Snapshot

	handlerMu sync.Mutex
	onStatus  func(core.Snapshot)
	statusMu  sync.Mutex // one get_status in flight

	timeout   time.Duration
	malformed atomic.Uint32

	dec      *protocol.FrameDecoder
	dropped  uint32 // decoder drops already counted
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New starts a client on port. The client owns the port and closes it in
// Close.
func New(port io.ReadWriteCloser) *Client {
	c := &Client{
		port:    port,
		results: make(chan Result, 8),
		status:  make(chan core.Snapshot, 1),
		timeout: DefaultTimeout,
		dec:     protocol.NewFrameDecoder(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetTimeout changes the command_result timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// OnStatus installs a callback for every status message received. It runs on
// the reader goroutine and must not block.
func (c *Client) OnStatus(fn func(core.Snapshot)) {
	c.handlerMu.Lock()
	c.onStatus = fn
	c.handlerMu.Unlock()
}

// Malformed returns the number of frames or messages the client could not
// decode.
func (c *Client) Malformed() uint32 {
	return c.malformed.Load()
}

// Send frames one command and waits for its command_result. A refused
// command returns a *CommandError.
func (c *Client) Send(ctx context.Context, id uint16, args func(protocol.OutputBuffer)) error {
	return c.send(ctx, id, c.timeout, args)
}

func (c *Client) send(ctx context.Context, id uint16, timeout time.Duration, args func(protocol.OutputBuffer)) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	// results left over from a timed-out command
	for len(c.results) > 0 {
		<-c.results
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := c.write(id, args); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case r := <-c.results:
			if r.Cmd != id {
				continue
			}
			if r.Code != protocol.ResultOK {
				return &CommandError{Cmd: r.Cmd, Code: r.Code}
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("%s: %w", protocol.MessageNames[id], ErrTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return ErrClosed
		case <-c.done:
			return ErrClosed
		}
	}
}

func (c *Client) write(id uint16, args func(protocol.OutputBuffer)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	out := protocol.NewScratchOutput()
	seq := uint8(c.seq.Add(1) - 1)
	protocol.EncodeMessage(out, seq, id, args)
	msg := out.Result()
	if len(msg) > protocol.FrameMax {
		return fmt.Errorf("message too long: %d bytes (max %d)", len(msg), protocol.FrameMax)
	}
	n, err := c.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// AdvanceMode steps the mode machine.
func (c *Client) AdvanceMode(ctx context.Context) error {
	return c.Send(ctx, protocol.MsgAdvanceMode, nil)
}

// Stop forces the controller to idle.
func (c *Client) Stop(ctx context.Context) error {
	return c.Send(ctx, protocol.MsgStop, nil)
}

// SetTargetSpeed sets the speed target in rpm.
func (c *Client) SetTargetSpeed(ctx context.Context, rpm float32) error {
	return c.Send(ctx, protocol.MsgSetTargetSpeed, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQFloat(o, rpm)
	})
}

// SetTargetCurrents sets the d/q current targets in amperes.
func (c *Client) SetTargetCurrents(ctx context.Context, id, iq float32) error {
	return c.Send(ctx, protocol.MsgSetTargetCurrents, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQFloat(o, id)
		protocol.EncodeVLQFloat(o, iq)
	})
}

// ClearFault releases a latched fault.
func (c *Client) ClearFault(ctx context.Context) error {
	return c.Send(ctx, protocol.MsgClearFault, nil)
}

// SetAngleSource selects the sensor or the observer.
func (c *Client) SetAngleSource(ctx context.Context, src core.AngleSourceKind) error {
	return c.Send(ctx, protocol.MsgSetAngleSource, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(src))
	})
}

// Align runs offset calibration on the controller. It blocks for the whole
// procedure.
func (c *Client) Align(ctx context.Context) error {
	return c.send(ctx, protocol.MsgAlign, AlignTimeout, nil)
}

// Status requests a status message and returns it.
func (c *Client) Status(ctx context.Context) (core.Snapshot, error) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	select {
	case <-c.status:
	default:
	}
	if err := c.Send(ctx, protocol.MsgGetStatus, nil); err != nil {
		return core.Snapshot{}, err
	}
	// the firmware writes the status before the command_result
	select {
	case s := <-c.status:
		return s, nil
	case <-time.After(c.timeout):
		return core.Snapshot{}, fmt.Errorf("status: %w", ErrTimeout)
	case <-c.done:
		return core.Snapshot{}, ErrClosed
	case <-ctx.Done():
		return core.Snapshot{}, ctx.Err()
	}
}

// Close stops the reader and closes the port.
func (c *Client) Close() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		err = c.port.Close()
		<-c.done
	})
	return err
}

func (c *Client) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Client) readLoop() {
	defer close(c.done)

	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			c.feed(buf[:n])
		}
		if err != nil {
			// io.EOF is a peer hangup; serial ports report idle timeouts
			// as empty reads instead.
			if c.stopped() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (c *Client) feed(data []byte) {
	for len(data) > 0 {
		n := c.dec.Feed(data)
		data = data[n:]
		for {
			f, ok := c.dec.Next()
			if d := c.dec.Dropped(); d != c.dropped {
				c.malformed.Add(d - c.dropped)
				c.dropped = d
			}
			if !ok {
				break
			}
			if err := protocol.DispatchPayload(f.Payload, c.handleMessage); err != nil {
				c.malformed.Add(1)
			}
		}
		if n == 0 {
			// decoder full of an incomplete frame
			c.dec.Reset()
			c.malformed.Add(1)
		}
	}
}

func (c *Client) handleMessage(id uint16, args *[]byte) error {
	switch id {
	case protocol.MsgCommandResult:
		cmd, err := protocol.DecodeVLQUint(args)
		if err != nil {
			return err
		}
		code, err := protocol.DecodeVLQUint(args)
		if err != nil {
			return err
		}
		select {
		case c.results <- Result{Cmd: uint16(cmd), Code: uint8(code)}:
		default:
		}
		return nil

	case protocol.MsgStatus:
		s, err := telemetry.DecodeStatus(args)
		if err != nil {
			return err
		}
		// keep only the newest
		select {
		case <-c.status:
		default:
		}
		c.status <- s

		c.handlerMu.Lock()
		fn := c.onStatus
		c.handlerMu.Unlock()
		if fn != nil {
			fn(s)
		}
		return nil
	}
	return fmt.Errorf("unexpected message %d", id)
}
