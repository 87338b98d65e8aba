package fuzzer

import (
	"context"
	"log/slog"
)

// SpawnFunc runs one complete session under the given identity.
type SpawnFunc func(ctx context.Context, id int) error

// Pool keeps a fixed number of sessions running, replacing each one the
// moment it stops. Identities increase monotonically and are never reused.
type Pool struct {
	size  int
	spawn SpawnFunc
	log   *slog.Logger
}

func NewPool(size int, spawn SpawnFunc, log *slog.Logger) *Pool {
	return &Pool{size: size, spawn: spawn, log: log}
}

// Run launches the initial set of sessions and replaces finished ones until
// ctx is cancelled. Sessions receive a context that survives cancellation:
// an interrupt stops replacements but never aborts a session mid-flight;
// in-flight sessions are abandoned when the process exits.
func (p *Pool) Run(ctx context.Context) {
	// Buffered to pool size so finishing sessions never block after shutdown.
	done := make(chan int, p.size)
	sessionCtx := context.WithoutCancel(ctx)

	nextID := 0
	launch := func() {
		nextID++
		id := nextID
		p.log.Info("starting session", slog.Int("agent", id))
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("session panicked", slog.Int("agent", id), slog.Any("panic", r))
				}
				done <- id
			}()
			if err := p.spawn(sessionCtx, id); err != nil {
				p.log.Error("session failed", slog.Int("agent", id), slog.Any("error", err))
			}
		}()
	}

	for i := 0; i < p.size; i++ {
		launch()
	}

	for {
		select {
		case <-ctx.Done():
			p.log.Warn("interrupt received; no further sessions will be started")
			return
		case id := <-done:
			p.log.Info("session finished", slog.Int("agent", id))
			launch()
		}
	}
}
