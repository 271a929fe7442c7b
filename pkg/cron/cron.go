package cron

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
)

// Trigger is one periodic policy the cron polls each minute.
type Trigger interface {
	// Due reports whether this minute is worth a Run call.
	Due(now time.Time) bool
	// Run checks the owner and schedules work when the interval elapsed.
	Run(now time.Time)
}

// Source yields the current trigger set. Fetched fresh on every tick
// so containers added or deleted mid-flight are picked up.
type Source func() []Trigger

// Cron is the minute-tick worker.
type Cron struct {
	source Source
	logger zerolog.Logger

	ref time.Time
	now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a cron over the trigger source.
func New(source Source) *Cron {
	return &Cron{
		source: source,
		logger: log.WithComponent("cron"),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start launches the tick loop, aligned to the wall-clock minute.
func (c *Cron) Start() {
	c.ref = c.now().Truncate(time.Minute)
	c.wg.Add(1)
	go c.run()
}

// Stop halts the loop.
func (c *Cron) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Cron) run() {
	defer c.wg.Done()

	for {
		wait := c.ref.Add(time.Minute).Sub(c.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			c.advance(c.now())
		case <-c.stopCh:
			timer.Stop()
			return
		}
	}
}

// advance moves the reference calendar forward one minute at a time
// until it reaches now, ticking once per minute passed.
func (c *Cron) advance(now time.Time) {
	for !c.ref.Add(time.Minute).After(now) {
		c.ref = c.ref.Add(time.Minute)
		c.tick(c.ref)
	}
}

// tick polls every trigger once for the given minute.
func (c *Cron) tick(now time.Time) {
	metrics.CronTicks.Inc()
	for _, tr := range c.source() {
		if !tr.Due(now) {
			continue
		}
		c.safeRun(tr, now)
	}
}

func (c *Cron) safeRun(tr Trigger, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("trigger panicked")
		}
	}()
	tr.Run(now)
}
