//go:build rp2040 || rp2350

package main

import (
	_ "embed"
	"machine"
	"runtime/interrupt"
	"time"

	"gofoc/config"
	"gofoc/core"
	"gofoc/encoder"
	"gofoc/foc"
	"gofoc/protocol"
	"gofoc/telemetry"
)

//go:embed motor.json
var motorConfig []byte

// Board pinout. The phase pins are channel A of slices 0, 1 and 2.
var (
	phasePins = [3]machine.Pin{machine.GPIO16, machine.GPIO18, machine.GPIO20}
	strobePin = machine.GPIO15
)

const statusPeriodMs = 100

var (
	controller *core.Controller
	pwm        *threePhasePWM
	currents   *adcCurrents
	timing     *strobe

	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	decoder      *protocol.FrameDecoder
	seq          uint8

	// Debug counters
	msgerrors    uint32
	isrMicros    uint32
	isrMaxMicros uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

// controlISR runs once per PWM period: acknowledge, sample, then run the
// control cycle on the fresh currents.
func controlISR(interrupt.Interrupt) {
	start := micros()
	pwm.Ack()
	timing.Pulse()
	controller.OnCurrentSample(currents.ReadCurrents())
	isrMicros = micros() - start
	if isrMicros > isrMaxMicros {
		isrMaxMicros = isrMicros
	}
}

func main() {
	// Disable the watchdog left armed by a previous image
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	core.SetDebugWriter(func(msg string) {
		USBWriteBytes([]byte(msg + "\r\n"))
	})
	core.InitAsyncDebug()

	cfg, err := config.LoadConfig(motorConfig)
	if err != nil {
		halt("config: " + err.Error())
	}
	settings := cfg.ControllerSettings()

	pwm, err = newThreePhasePWM(phasePins, float32(cfg.Control.LoopHz))
	if err != nil {
		halt("pwm: " + err.Error())
	}
	currents = newADCCurrents()
	as5047, err := newEncoder()
	if err != nil {
		halt("spi: " + err.Error())
	}
	est, err := cfg.NewObserver()
	if err != nil {
		halt("observer: " + err.Error())
	}
	timing, err = newStrobe(strobePin)
	if err != nil {
		// timing output is optional
		core.DebugPrintln("strobe: " + err.Error())
		timing = nil
	}

	hw := core.Hardware{
		PWM:      pwm,
		Sensor:   encoder.NewSensor(as5047, settings.SpeedDivider, settings.Ts, float32(cfg.Sensor.SpeedFilter)),
		Currents: currents,
		Observer: est,
		Sleep:    time.Sleep,
	}
	controller, err = core.NewController(settings, hw)
	if err != nil {
		halt("controller: " + err.Error())
	}

	// The bridge is at zero duty, so the shunts carry no current yet.
	if _, err := controller.CalibrateCurrentOffsets(64); err != nil {
		halt("offsets: " + err.Error())
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	decoder = protocol.NewFrameDecoder()

	reg := core.NewCommandRegistry()
	core.RegisterControlCommands(reg, controller, writeStatus)

	irq := interrupt.New(pwmWrapIRQ, controlISR)
	pwm.EnableWrapInterrupt()
	irq.Enable()

	var sched core.Scheduler
	sched.Every(millis(), statusPeriodMs, func() {
		writeStatus(controller.Snapshot())
	})

	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
					decoder.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				n := decoder.Feed(data)
				if n == 0 {
					// decoder stuck on an oversized frame
					msgerrors++
					decoder.Reset()
				}
				inputBuffer.Pop(n)
				for {
					fr, ok := decoder.Next()
					if !ok {
						break
					}
					reg.HandlePayload(fr.Payload, writeResult)
				}
			}

			sched.Dispatch(millis())

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

func writeResult(id uint16, code uint8) {
	seq++
	protocol.EncodeMessage(outputBuffer, seq, protocol.MsgCommandResult, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(id))
		protocol.EncodeVLQUint(o, uint32(code))
	})
}

func writeStatus(s core.Snapshot) {
	seq++
	telemetry.EncodeStatusFrame(outputBuffer, seq, s)
}

// halt stops the bridge and repeats msg forever. Used only before the
// control interrupt is enabled.
func halt(msg string) {
	if pwm != nil {
		pwm.SetDuty(foc.ZeroDuty)
	}
	for {
		core.DebugPrintln(msg)
		time.Sleep(time.Second)
	}
}

// usbReaderLoop moves received bytes into inputBuffer.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// A reconnecting host starts a fresh stream; drop any partial
			// frame and stop the motor.
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				decoder.Reset()
				controller.Stop()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes available data from output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// likely disconnected
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
