package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRepeatOnceReturnsError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := repeat(context.Background(), quietLogger(), false, time.Hour, func(context.Context) (bool, error) {
		calls++
		return true, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRepeatLoopPausesAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := repeat(ctx, quietLogger(), true, time.Hour, func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			time.AfterFunc(20*time.Millisecond, cancel)
			return true, errors.New("transient")
		}
		return true, nil
	})
	require.NoError(t, err)
	// the failed round waits for the interval, so the canceled context ends it
	assert.Equal(t, 2, calls)
}

func TestRepeatLoopRunsBusyRoundsBackToBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- repeat(ctx, quietLogger(), true, time.Hour, func(context.Context) (bool, error) {
			calls++
			if calls == 3 {
				cancel()
				return false, nil
			}
			return true, nil
		})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("busy rounds waited for the interval")
	}
	assert.Equal(t, 3, calls)
}

func TestTaskNames(t *testing.T) {
	all, err := taskNames(nil)
	require.NoError(t, err)
	assert.Equal(t, model.TaskNames, all)

	got, err := taskNames([]string{"create-order", "send-email-message"})
	require.NoError(t, err)
	assert.Equal(t, []model.TaskName{model.TaskCreateOrder, model.TaskSendEmailMessage}, got)

	_, err = taskNames([]string{"make-coffee"})
	assert.Error(t, err)
}
