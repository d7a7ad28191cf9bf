package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent is one entry of the post-mortem ring. Clock is the control
// cycle counter at the time of the event.
type TimingEvent struct {
	EventType uint8
	Code      uint8 // mode, fault code or angle source, depending on EventType
	Clock     uint32
	Value1    uint32
	Value2    uint32
}

// Event type codes
const (
	EvtModeChange   = 1 // Code = new mode, Value1 = previous mode
	EvtFault        = 2 // Code = fault code
	EvtFaultCleared = 3
	EvtAligned      = 4 // Value1 = offset in millirad
	EvtPolarity     = 5 // Code = 1 for reversed sensor
	EvtHandoff      = 6 // Value1 = observer speed in rpm
	EvtOverrun      = 7 // Value1 = overrun count
	EvtStaleAngle   = 8
)

const (
	TimingRingSize = 32
)

var (
	debugPrintln DebugWriter = func(s string) {}

	// Off by default so debug output never disturbs loop timing.
	debugEnabled bool = false

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true

	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function (UART,
// USB CDC, stdout on the host).
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the goroutine that drains DebugAsync messages.
// Call it from main() after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message synchronously. Never call it from the
// control cycle.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a message for the output worker. It drops the message
// when the queue is full.
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordTiming stores an event in the ring. It does not allocate and is safe
// to call from the control cycle.
func RecordTiming(eventType, code uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Code:      code,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType != 0 {
			events = append(events, evt)
		}
	}
	return events
}

func eventName(evt TimingEvent) string {
	switch evt.EventType {
	case EvtModeChange:
		return "MODE " + Mode(evt.Value1).String() + "->" + Mode(evt.Code).String()
	case EvtFault:
		return "FAULT " + FaultCode(evt.Code).String()
	case EvtFaultCleared:
		return "FAULT_CLEARED"
	case EvtAligned:
		return "ALIGNED"
	case EvtPolarity:
		return "POLARITY"
	case EvtHandoff:
		return "HANDOFF"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtStaleAngle:
		return "STALE_ANGLE"
	}
	return "UNKNOWN"
}

// DumpTimingRing writes the ring through the debug writer. Call it after a
// fault or on shutdown, never from the control cycle.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt) +
			" cycle=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
