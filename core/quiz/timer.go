package quiz

import (
	"sync"
	"sync/atomic"
	"time"
)

const DefaultTickInterval = time.Second

// Tick is published by a Timer on every interval.
type Tick struct {
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining,omitempty"` // only set if HasLimit
	HasLimit  bool          `json:"has_limit"`
}

type TimerOptions struct {
	Start      time.Time
	Limit      time.Duration // 0: no deadline
	Interval   time.Duration // defaults to DefaultTickInterval
	Now        func() time.Time
	OnTick     func(Tick)
	// OnDeadline reports whether the deadline was handled. it is called again on the next tick until it does.
	OnDeadline func() bool
}

// Timer drives the elapsed time of a Session & fires its deadline.
type Timer struct {
	start      time.Time
	limit      time.Duration
	interval   time.Duration
	now        func() time.Time
	onTick     func(Tick)
	onDeadline func() bool

	deadlineMu   sync.Mutex
	deadlineDone bool
	stopOnce     sync.Once
	stopped      atomic.Bool
	stop         chan struct{}
}

func NewTimer(opts TimerOptions) *Timer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Timer{
		start:      opts.Start,
		limit:      opts.Limit,
		interval:   opts.Interval,
		now:        opts.Now,
		onTick:     opts.OnTick,
		onDeadline: opts.OnDeadline,
		stop:       make(chan struct{}),
	}
}

// Start ticks in a new goroutine until Stop is called.
func (t *Timer) Start() {
	ticker := time.NewTicker(t.interval)
	go func() {
		defer ticker.Stop()
		t.run(ticker.C)
	}()
}

func (t *Timer) run(ticks <-chan time.Time) {
	for {
		select {
		case <-t.stop:
			return
		case <-ticks:
			t.Tick()
		}
	}
}

// Tick publishes the elapsed time, then calls the deadline callback once the limit is reached,
// until the callback succeeds. it does nothing once the Timer is stopped.
func (t *Timer) Tick() {
	if t.stopped.Load() {
		return
	}

	elapsed := t.now().Sub(t.start)
	tick := Tick{Elapsed: elapsed}
	if t.limit > 0 {
		tick.HasLimit = true
		tick.Remaining = remaining(t.limit, elapsed)
	}
	if t.onTick != nil {
		t.onTick(tick)
	}

	if tick.HasLimit && tick.Remaining <= 0 {
		t.fireDeadline()
	}
}

func (t *Timer) fireDeadline() {
	t.deadlineMu.Lock()
	defer t.deadlineMu.Unlock()

	if t.deadlineDone || t.stopped.Load() {
		return
	}
	t.deadlineDone = t.onDeadline == nil || t.onDeadline()
}

// Stop is idempotent. it does not wait for a tick in flight.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		close(t.stop)
	})
}

func (t *Timer) Stopped() bool { return t.stopped.Load() }
