package sim

// Timer represents a scheduled event on the virtual clock
type Timer struct {
	WakeTime uint64
	Handler  func(*Timer) uint8
	Next     *Timer
	armed    bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Clock is a virtual clock counting timer input ticks, with a list of
// pending timers sorted by WakeTime. It is not safe for concurrent use;
// Board serialises access.
type Clock struct {
	now       uint64
	timerList *Timer
}

// Now returns the current tick count
func (c *Clock) Now() uint64 {
	return c.now
}

// Schedule adds t in WakeTime order. Timers with equal WakeTime run in
// the order they were scheduled.
func (c *Clock) Schedule(t *Timer) {
	t.armed = true
	if c.timerList == nil || t.WakeTime < c.timerList.WakeTime {
		t.Next = c.timerList
		c.timerList = t
		return
	}

	current := c.timerList
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Cancel removes t if it is scheduled
func (c *Clock) Cancel(t *Timer) {
	if !t.armed {
		return
	}
	t.armed = false
	if c.timerList == t {
		c.timerList = t.Next
		t.Next = nil
		return
	}
	for cur := c.timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// popDue removes and returns the first timer due at or before until
func (c *Clock) popDue(until uint64) *Timer {
	t := c.timerList
	if t == nil || t.WakeTime > until {
		return nil
	}
	c.timerList = t.Next
	t.Next = nil // Clear Next pointer to avoid circular references
	t.armed = false
	return t
}

// Pending reports whether any timer is scheduled
func (c *Clock) Pending() bool {
	return c.timerList != nil
}
