package workers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a long-running background task. Run must return once ctx is done.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// Run starts every job in its own goroutine and blocks until all of them
// have returned.
func Run(ctx context.Context, jobs ...Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			log.Info().Str("job", job.Name).Msg("worker started")
			job.Run(ctx)
			log.Info().Str("job", job.Name).Msg("worker stopped")
		}(job)
	}
	wg.Wait()
}

// Every turns fn into a job body that runs on a fixed interval. Errors are
// logged and the loop continues.
func Every(name string, interval time.Duration, fn func(ctx context.Context) error) func(ctx context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					log.Error().Err(err).Str("job", name).Msg("worker run failed")
				}
			}
		}
	}
}
