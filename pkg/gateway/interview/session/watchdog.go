package session

import (
	"math/rand/v2"
	"time"
)

// WatchdogState is the silence watchdog's lifecycle position.
type WatchdogState int

const (
	// WatchdogIdle: no deadline pending; the assistant is speaking or the
	// candidate has not finished hearing the last reply yet.
	WatchdogIdle WatchdogState = iota
	// WatchdogWaiting: a stage deadline is armed and counting down.
	WatchdogWaiting
	// WatchdogSpeaking: a reminder or closing message is being delivered;
	// the deadline is disarmed until the client confirms playback.
	WatchdogSpeaking
	// WatchdogTerminated: the session is over; no further transitions.
	WatchdogTerminated
)

func (s WatchdogState) String() string {
	switch s {
	case WatchdogIdle:
		return "idle"
	case WatchdogWaiting:
		return "waiting"
	case WatchdogSpeaking:
		return "speaking"
	case WatchdogTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WatchdogConfig holds stage timeouts and message pools. Stages 1 and 2
// deliver a reminder drawn from their pool; stage 3 delivers a closing
// message and ends the interview.
type WatchdogConfig struct {
	StageTimeouts   [3]time.Duration
	ReminderPools   [2][]string
	ClosingMessages []string
}

// DefaultWatchdogConfig returns the stock timeouts and message pools.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		StageTimeouts: [3]time.Duration{15 * time.Second, 25 * time.Second, 30 * time.Second},
		ReminderPools: [2][]string{
			{
				"Are you still with me? Take your time if you need a moment to think.",
				"Just checking in. Whenever you're ready, go ahead with your answer.",
				"No rush, but I wanted to make sure you're still there.",
			},
			{
				"It seems quiet on your end. Can you hear me alright?",
				"I haven't heard from you in a while. Is everything okay with your connection?",
			},
		},
		ClosingMessages: []string{
			"It looks like we may have lost you. Thank you for your time today; we'll follow up by email. Goodbye!",
			"Since I haven't heard back, we'll wrap up here. Thank you for speaking with me, and we'll be in touch soon.",
		},
	}
}

// Watchdog tracks candidate silence across three escalating stages. It is
// not safe for concurrent use; every method must be called from the session
// run loop, which also owns the timer channel returned by Deadline.
type Watchdog struct {
	cfg   WatchdogConfig
	state WatchdogState
	stage int // 1..3, meaningful in Waiting and Speaking

	timer *time.Timer
	pick  func(n int) int
}

// NewWatchdog builds an idle watchdog.
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	defaults := DefaultWatchdogConfig()
	for i, d := range cfg.StageTimeouts {
		if d <= 0 {
			cfg.StageTimeouts[i] = defaults.StageTimeouts[i]
		}
	}
	for i, pool := range cfg.ReminderPools {
		if len(pool) == 0 {
			cfg.ReminderPools[i] = defaults.ReminderPools[i]
		}
	}
	if len(cfg.ClosingMessages) == 0 {
		cfg.ClosingMessages = defaults.ClosingMessages
	}
	return &Watchdog{cfg: cfg, state: WatchdogIdle, pick: rand.IntN}
}

// State reports the current lifecycle position.
func (w *Watchdog) State() WatchdogState { return w.state }

// Stage reports the current silence stage (1..3); zero when idle.
func (w *Watchdog) Stage() int {
	if w.state == WatchdogIdle || w.state == WatchdogTerminated {
		return 0
	}
	return w.stage
}

// Deadline exposes the pending timer channel, or nil when no deadline is
// armed. Safe to use directly in the run loop's select.
func (w *Watchdog) Deadline() <-chan time.Time {
	if w.state != WatchdogWaiting || w.timer == nil {
		return nil
	}
	return w.timer.C
}

// PlaybackComplete is the arming trigger: the client finished hearing the
// last reply. From Idle this starts stage 1; after a reminder (Speaking n,
// n < 3) it advances to stage n+1. Duplicate signals while already waiting
// are ignored, as is anything after termination.
func (w *Watchdog) PlaybackComplete() {
	switch w.state {
	case WatchdogIdle:
		w.arm(1)
	case WatchdogSpeaking:
		if w.stage < 3 {
			w.arm(w.stage + 1)
		}
	}
}

// Transcript reports that the candidate produced intelligible speech. Any
// pending deadline is canceled and the stage resets. Callers must not invoke
// this for empty transcripts.
func (w *Watchdog) Transcript() {
	if w.state == WatchdogWaiting || w.state == WatchdogSpeaking {
		w.disarm()
		w.state = WatchdogIdle
		w.stage = 0
	}
}

// Expire consumes a fired deadline: it disarms the timer, moves to Speaking,
// and returns the message to deliver. terminal is true on stage 3, meaning
// the session must end once the message has been emitted.
func (w *Watchdog) Expire() (message string, terminal bool) {
	if w.state != WatchdogWaiting {
		return "", false
	}
	w.disarm()
	w.state = WatchdogSpeaking

	switch w.stage {
	case 1, 2:
		pool := w.cfg.ReminderPools[w.stage-1]
		return pool[w.pick(len(pool))], false
	default:
		return w.cfg.ClosingMessages[w.pick(len(w.cfg.ClosingMessages))], true
	}
}

// Terminate ends the watchdog on connection loss or session teardown. No
// message is produced and no further transitions happen.
func (w *Watchdog) Terminate() {
	w.disarm()
	w.state = WatchdogTerminated
	w.stage = 0
}

// arm replaces any pending deadline with the given stage's timeout.
func (w *Watchdog) arm(stage int) {
	w.disarm()
	w.stage = stage
	w.state = WatchdogWaiting
	w.timer = time.NewTimer(w.cfg.StageTimeouts[stage-1])
}

func (w *Watchdog) disarm() {
	if w.timer == nil {
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer = nil
}
