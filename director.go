package main

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/scheduler"
)

const idlePoll = 50 * time.Millisecond

// director feeds script lines to the scheduler at their offsets and
// restarts the script when a new version arrives.
type director struct {
	sched  *scheduler.Scheduler
	idle   func() bool
	logger *log.Logger
}

func newDirector(s *session) *director {
	return &director{
		sched:  s.scheduler,
		idle:   s.idle,
		logger: s.logger,
	}
}

// run performs sc, then each script received on changes. With a nil
// changes channel it returns once sc has been fully played.
func (d *director) run(ctx context.Context, sc *script, changes <-chan *script) error {
	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(sc *script) { done <- d.perform(runCtx, sc) }(sc)

		select {
		case err := <-done:
			cancel()
			if err != nil {
				return ignoreCanceled(err)
			}
			if changes == nil {
				return nil
			}
			d.logger.Info("Script finished, waiting for changes")
			select {
			case <-ctx.Done():
				return nil
			case next, ok := <-changes:
				if !ok {
					return nil
				}
				sc = next
			}

		case next, ok := <-changes:
			cancel()
			<-done
			if !ok {
				return nil
			}
			d.logger.Info("Script changed, restarting", "lines", len(next.Lines))
			sc = next

		case <-ctx.Done():
			cancel()
			<-done
			return nil
		}

		d.sched.Reset()
	}
}

// perform plays every line at its offset from now and waits until the
// scheduler is idle.
func (d *director) perform(ctx context.Context, sc *script) error {
	start := time.Now()

	for _, l := range sc.Lines {
		if wait := l.At - time.Since(start); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		if _, err := d.sched.PlayDialogue(l.Speaker, l.Text, l.options()...); err != nil {
			d.logger.Warn("Line rejected", "speaker", l.Speaker, "error", err)
		}
	}

	return d.waitIdle(ctx)
}

func (d *director) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for !d.idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (l scriptLine) options() []scheduler.PlayOption {
	var opts []scheduler.PlayOption
	if l.ID != "" {
		opts = append(opts, scheduler.WithID(l.ID))
	}
	if l.Priority != nil {
		opts = append(opts, scheduler.WithPriority(*l.Priority))
	}
	if l.Emotion != "" {
		opts = append(opts, scheduler.WithEmotion(l.Emotion))
	}
	if len(l.Traits) > 0 {
		opts = append(opts, scheduler.WithTraits(l.Traits...))
	}
	return opts
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
