package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a single-line progress message with elapsed or
// remaining time. Single-use: Start at most once, Stop is safe to call any
// number of times.
type ProgressPrinter struct {
	prefix     string
	phase      atomic.Value
	stopPhases map[string]struct{}
	startTime  time.Time
	ticker     atomic.Pointer[time.Ticker]
	stopChan   chan struct{}
	done       chan struct{}
	started    atomic.Bool
	countdown  time.Duration // zero means count up
}

// NewProgressPrinter creates a printer that shows elapsed time. Phases named
// in stopPhases trigger an automatic Stop when set through Callback.
func NewProgressPrinter(prefix, phase string, stopPhases ...string) *ProgressPrinter {
	return newPrinter(prefix, phase, 0, stopPhases)
}

// NewCountdownProgressPrinter creates a printer that counts down from
// duration instead of showing elapsed time.
func NewCountdownProgressPrinter(prefix, phase string, duration time.Duration, stopPhases ...string) *ProgressPrinter {
	return newPrinter(prefix, phase, duration, stopPhases)
}

func newPrinter(prefix, phase string, countdown time.Duration, stopPhases []string) *ProgressPrinter {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		prefix:     prefix,
		stopPhases: stopSet,
		countdown:  countdown,
	}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress updates on a background goroutine.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Printf("\r%s (%s...)   ", p.prefix, p.phase.Load().(string))

	go p.loop(ticker)
}

func (p *ProgressPrinter) loop(ticker *time.Ticker) {
	defer close(p.done)

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			phase := p.phase.Load().(string)
			if _, isStop := p.stopPhases[phase]; isStop {
				return
			}

			elapsed := time.Since(p.startTime)
			var seconds int
			if p.countdown > 0 {
				if remaining := p.countdown - elapsed; remaining > 0 {
					seconds = int(remaining.Seconds() + 0.5)
				}
			} else {
				seconds = int(elapsed.Seconds())
			}

			if seconds > 0 {
				fmt.Printf("\r%s (%s %ds)   ", p.prefix, phase, seconds)
			} else {
				fmt.Printf("\r%s (%s...)   ", p.prefix, phase)
			}
		}
	}
}

// Callback returns a phase-update function. Setting a stop phase stops the
// printer. Safe for concurrent use.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, isStop := p.stopPhases[phase]; isStop {
			p.Stop()
		}
	}
}

// Stop halts the display and clears the progress line. Idempotent.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Print(clearLineSequence)
}
