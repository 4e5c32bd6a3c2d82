package scheduler

import (
	"context"
	"time"

	"stockgate/internal/logger"
)

// Periodic runs task every interval until ctx is done. Task errors are
// logged and the loop continues with the next tick.
func Periodic(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	if task == nil {
		logger.Warnf("scheduler: %s task is nil, exit", name)
		return
	}
	if interval <= 0 {
		logger.Warnf("scheduler: %s invalid interval=%s, exit", name, interval)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := task(ctx); err != nil {
			logger.Warnf("scheduler: %s failed err=%v", name, err)
		}
		select {
		case <-ctx.Done():
			logger.Infof("scheduler: %s ctx done, exit", name)
			return
		case <-ticker.C:
		}
	}
}

// PeriodicFatal is like Periodic but the first task error stops the loop
// and is returned. Used for tasks whose failure should end the process.
func PeriodicFatal(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) error {
	if task == nil || interval <= 0 {
		logger.Warnf("scheduler: %s misconfigured, exit", name)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := task(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Once runs task after delay unless ctx is canceled first.
func Once(ctx context.Context, delay time.Duration, task func(context.Context)) {
	if task == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}
		task(ctx)
	}()
}
