package core

// Timer is a supervisory task. The handler runs from Scheduler.Dispatch and
// returns SF_RESCHEDULE after moving WakeTime forward, or SF_DONE.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler runs timers from the supervisory loop (telemetry, status
// reports, debug dumps). Times are in whatever unit the caller passes to
// Dispatch, typically milliseconds; comparisons are wrap-safe.
type Scheduler struct {
	list *Timer
}

func before(a, b uint32) bool {
	return int32(a-b) < 0
}

// Schedule inserts t in wake-time order.
func (s *Scheduler) Schedule(t *Timer) {
	if s.list == nil || before(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}
	cur := s.list
	for cur.Next != nil && !before(t.WakeTime, cur.Next.WakeTime) {
		cur = cur.Next
	}
	t.Next = cur.Next
	cur.Next = t
}

// Every schedules fn to run each period starting at now+period.
func (s *Scheduler) Every(now, period uint32, fn func()) *Timer {
	t := &Timer{
		WakeTime: now + period,
		Handler: func(t *Timer) uint8 {
			fn()
			t.WakeTime += period
			return SF_RESCHEDULE
		},
	}
	s.Schedule(t)
	return t
}

// Cancel removes t if it is scheduled.
func (s *Scheduler) Cancel(t *Timer) {
	for p := &s.list; *p != nil; p = &(*p).Next {
		if *p == t {
			*p = t.Next
			t.Next = nil
			return
		}
	}
}

// Dispatch runs every timer due at now.
func (s *Scheduler) Dispatch(now uint32) {
	for s.list != nil && !before(now, s.list.WakeTime) {
		t := s.list
		s.list = t.Next
		t.Next = nil
		if t.Handler(t) == SF_RESCHEDULE {
			s.Schedule(t)
		}
	}
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.list; t != nil; t = t.Next {
		n++
	}
	return n
}
