package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// round does one unit of work. busy reports that more work may be waiting,
// so the next round starts without pausing.
type round func(ctx context.Context) (busy bool, err error)

// repeat runs fn once, or until ctx is done when loop is set. In a loop an
// error is logged and the next round waits for interval.
func repeat(ctx context.Context, logger *logrus.Logger, loop bool, interval time.Duration, fn round) error {
	if !loop {
		_, err := fn(ctx)
		return err
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		busy, err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithContext(ctx).WithError(err).Error("round failed")
			busy = false
		}
		if busy {
			timer.Reset(0)
		} else {
			timer.Reset(interval)
		}
	}
}

// taskNames resolves the run arguments; no argument means every task.
func taskNames(args []string) ([]model.TaskName, error) {
	if len(args) == 0 {
		return model.TaskNames, nil
	}
	known := make(map[model.TaskName]bool, len(model.TaskNames))
	for _, n := range model.TaskNames {
		known[n] = true
	}
	out := make([]model.TaskName, 0, len(args))
	for _, a := range args {
		n := model.TaskName(a)
		if !known[n] {
			return nil, fmt.Errorf("unknown task %q", a)
		}
		out = append(out, n)
	}
	return out, nil
}
