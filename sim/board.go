// Package sim is a simulated stage board: counter timers in phase-correct
// PWM mode with toggle-on-compare outputs, direction lines and overflow
// interrupts, all driven from a virtual clock. It implements the hardware
// interfaces of package core so the motion core runs unchanged on a host.
package sim

import (
	"context"
	"sync"
	"time"

	"stage/core"
)

// WGMBits is preset in every simulated control register next to the
// clock-select field. Clock-select updates must never disturb it.
const WGMBits uint8 = 1 << 4

// Board is a simulated MCU with one timer per configured channel
type Board struct {
	mu       sync.Mutex
	hz       uint32
	clock    Clock
	channels []*Channel
	dirs     []*DirLine
}

// Channel is one simulated counter timer. It implements core.PulseHAL.
type Channel struct {
	board  *Board
	id     int
	ratios map[uint8]uint32 // Clock-select bits -> prescaler ratio
	mask   uint8

	control   uint8 // Control register holding the clock-select field
	top       uint16
	output    bool
	overflows uint64
	event     Timer

	handler func(axis int)
	axis    int
}

// DirLine is a simulated direction output. It implements core.DirectionLine.
type DirLine struct {
	board   *Board
	level   bool
	changes int
}

// NewBoard builds a board matching cfg's channel and axis tables
func NewBoard(cfg core.Config) *Board {
	b := &Board{hz: cfg.Clock}
	for i := range cfg.Channels {
		cc := &cfg.Channels[i]
		ch := &Channel{
			board:   b,
			id:      i,
			ratios:  make(map[uint8]uint32, len(cc.Ratios)),
			mask:    cc.ClockMask,
			control: WGMBits,
		}
		for j, bits := range cc.ClockSelect {
			if j < len(cc.Ratios) {
				ch.ratios[bits] = cc.Ratios[j]
			}
			if cc.ClockMask == 0 {
				ch.mask |= bits
			}
		}
		ch.event.Handler = ch.overflow
		b.channels = append(b.channels, ch)
	}
	for range cfg.Axes {
		b.dirs = append(b.dirs, &DirLine{board: b})
	}
	return b
}

// Hardware returns the bindings for core.NewMotionState
func (b *Board) Hardware() core.Hardware {
	hw := core.Hardware{
		Channels:   make([]core.PulseHAL, len(b.channels)),
		Directions: make([]core.DirectionLine, len(b.dirs)),
	}
	for i, ch := range b.channels {
		hw.Channels[i] = ch
	}
	for i, d := range b.dirs {
		hw.Directions[i] = d
	}
	return hw
}

// Channel returns simulated timer i
func (b *Board) Channel(i int) *Channel {
	return b.channels[i]
}

// Direction returns the direction line of axis i
func (b *Board) Direction(i int) *DirLine {
	return b.dirs[i]
}

// Now returns the virtual time in timer input ticks
func (b *Board) Now() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock.Now()
}

// Ticks converts d to timer input ticks
func (b *Board) Ticks(d time.Duration) uint64 {
	return uint64(d) * uint64(b.hz) / uint64(time.Second)
}

// Attach implements core.OverflowSource
func (b *Board) Attach(channel, axis int, fn func(axis int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := b.channels[channel]
	ch.handler = fn
	ch.axis = axis
}

// Advance runs the virtual clock forward by ticks, delivering every
// overflow interrupt that falls due on the way.
func (b *Board) Advance(ticks uint64) {
	b.mu.Lock()
	end := b.clock.Now() + ticks
	b.mu.Unlock()

	for b.step(end) {
	}
}

// RunUntilIdle advances until no counter is running or limit ticks have
// passed. It reports whether the board went idle. The clock stops at the
// last overflow when the board goes idle early.
func (b *Board) RunUntilIdle(limit uint64) bool {
	b.mu.Lock()
	end := b.clock.Now() + limit
	b.mu.Unlock()

	for !b.idle() {
		if !b.step(end) {
			return b.idle()
		}
	}
	return true
}

func (b *Board) idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.clock.Pending()
}

// RunRealtime advances the virtual clock in step increments paced by the
// wall clock until ctx is done.
func (b *Board) RunRealtime(ctx context.Context, step time.Duration) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Advance(b.Ticks(step))
		}
	}
}

// step delivers the next overflow due at or before end. When none is
// left it moves the clock to end and returns false.
func (b *Board) step(end uint64) bool {
	b.mu.Lock()
	t := b.clock.popDue(end)
	if t == nil {
		if end > b.clock.now {
			b.clock.now = end
		}
		b.mu.Unlock()
		return false
	}
	b.clock.now = t.WakeTime
	if t.Handler(t) == SF_RESCHEDULE {
		b.clock.Schedule(t)
	}
	ch := b.channelOf(t)
	fn, axis := ch.handler, ch.axis
	b.mu.Unlock()

	// The interrupt runs outside b.mu; its handler calls back into the HAL.
	// A command may stop the channel between the overflow and the handler.
	// Hardware has the same window with a latched overflow flag serviced
	// after the foreground write, and the tracker's running gate covers it.
	if fn != nil {
		core.ServiceInterrupt(func() { fn(axis) })
	}
	return true
}

func (b *Board) channelOf(t *Timer) *Channel {
	for _, ch := range b.channels {
		if &ch.event == t {
			return ch
		}
	}
	panic("sim: timer not owned by any channel")
}

// InjectSpurious fires channel's overflow interrupt without the counter
// having moved, as a glitch would.
func (b *Board) InjectSpurious(channel int) {
	b.mu.Lock()
	ch := b.channels[channel]
	fn, axis := ch.handler, ch.axis
	b.mu.Unlock()
	if fn != nil {
		core.ServiceInterrupt(func() { fn(axis) })
	}
}

// ApplyPrescaler implements core.PulseHAL
func (c *Channel) ApplyPrescaler(bits uint8) {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	c.control |= bits
	c.rearm()
}

// ClearPrescaler implements core.PulseHAL
func (c *Channel) ClearPrescaler(mask uint8) {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	c.control &^= mask
	c.rearm()
}

// SetTop implements core.PulseHAL. The new value is used from the next
// counter period on.
func (c *Channel) SetTop(top uint16) {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	c.top = top
}

// OutputHigh implements core.PulseHAL
func (c *Channel) OutputHigh() bool {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	return c.output
}

// Control returns the control register, clock-select field included
func (c *Channel) Control() uint8 {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	return c.control
}

// Top returns the loaded TOP value
func (c *Channel) Top() uint16 {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	return c.top
}

// Running reports whether the counter has a valid clock source
func (c *Channel) Running() bool {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	return c.event.armed
}

// Overflows returns the number of counter overflows so far
func (c *Channel) Overflows() uint64 {
	c.board.mu.Lock()
	defer c.board.mu.Unlock()
	return c.overflows
}

// period returns the counter period in input ticks, 0 when stopped. An
// unknown clock-select pattern stops the counter.
func (c *Channel) period() uint64 {
	ratio := c.ratios[c.control&c.mask]
	if ratio == 0 || c.top == 0 {
		return 0
	}
	// Phase-correct mode counts up to TOP and back down
	return 2 * uint64(c.top) * uint64(ratio)
}

// rearm schedules or cancels the overflow event after a clock-select
// change. Called with board.mu held.
func (c *Channel) rearm() {
	p := c.period()
	switch {
	case p == 0:
		c.board.clock.Cancel(&c.event)
	case !c.event.armed:
		c.event.WakeTime = c.board.clock.Now() + p
		c.board.clock.Schedule(&c.event)
	}
}

// overflow is the counter reaching BOTTOM: the output toggled once during
// the period. Called with board.mu held.
func (c *Channel) overflow(t *Timer) uint8 {
	c.output = !c.output
	c.overflows++
	p := c.period()
	if p == 0 {
		return SF_DONE
	}
	t.WakeTime += p
	return SF_RESCHEDULE
}

// SetDirection implements core.DirectionLine
func (d *DirLine) SetDirection(high bool) {
	d.board.mu.Lock()
	defer d.board.mu.Unlock()
	if d.level != high {
		d.changes++
	}
	d.level = high
}

// Level returns the current line level
func (d *DirLine) Level() bool {
	d.board.mu.Lock()
	defer d.board.mu.Unlock()
	return d.level
}

// Changes returns how many times the level changed
func (d *DirLine) Changes() int {
	d.board.mu.Lock()
	defer d.board.mu.Unlock()
	return d.changes
}
