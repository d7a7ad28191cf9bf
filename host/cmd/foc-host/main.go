package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gofoc/core"
	"gofoc/host/link"
	"gofoc/host/serial"
)

var (
	device   = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud     = flag.Int("baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	timeout  = flag.Duration("timeout", link.DefaultTimeout, "Command response timeout")
	watch    = flag.Bool("watch", false, "Print status messages streamed by the controller")
	canIface = flag.String("can", "", "Bridge the controller to this SocketCAN interface (e.g. can0)")
	canNode  = flag.Uint("node", 1, "CAN node ID")
	canRate  = flag.Duration("can-period", 100*time.Millisecond, "CAN status publish period")
)

func main() {
	flag.Parse()

	fmt.Println("FOC Host - motor controller link")
	fmt.Println("================================")

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client := link.New(port)
	defer client.Close()
	client.SetTimeout(*timeout)
	fmt.Printf("Connected to %s\n", *device)

	if *watch {
		client.OnStatus(func(s core.Snapshot) {
			printStatus(os.Stdout, s)
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *canIface != "" {
		gw, err := dialGateway(ctx, *canIface, uint8(*canNode), client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer gw.Close()
		go gw.Run(ctx, *canRate)
		fmt.Printf("Bridging node %d on %s\n", *canNode, *canIface)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}

		err := execLine(ctx, client, os.Stdout, line)
		switch {
		case err == nil:
		case errors.Is(err, errQuit):
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}
