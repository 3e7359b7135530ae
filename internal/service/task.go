package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/queue"
)

// TaskHandler runs one task. Returning an error leaves the task Running for
// the retry sweep.
type TaskHandler func(ctx context.Context, t model.Task) error

// TaskService claims tasks and dispatches them to handlers by name.
type TaskService struct {
	logger    *logrus.Logger
	tasks     TaskRepository
	publisher Publisher
	metrics   *metrics.Metrics
	handlers  map[model.TaskName]TaskHandler
	now       func() time.Time
}

type TaskServiceProperty struct {
	Logger         *logrus.Logger
	TaskRepository TaskRepository
	Publisher      Publisher
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

func NewTaskService(props TaskServiceProperty) *TaskService {
	now := props.Now
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		logger:    props.Logger,
		tasks:     props.TaskRepository,
		publisher: props.Publisher,
		metrics:   props.Metrics,
		handlers:  make(map[model.TaskName]TaskHandler),
		now:       now,
	}
}

// Handle registers h for name, replacing any earlier handler.
func (s *TaskService) Handle(name model.TaskName, h TaskHandler) {
	s.handlers[name] = h
}

// Save stores new tasks.
func (s *TaskService) Save(ctx context.Context, tasks []model.Task) error {
	return s.tasks.Save(ctx, tasks)
}

// Execute runs t and appends the outcome to its history: Executed on
// success, Running otherwise. The handler error is returned.
func (s *TaskService) Execute(ctx context.Context, t model.Task) error {
	log := s.logger.WithContext(ctx).WithFields(logrus.Fields{"taskId": t.ID, "name": t.Name})

	var runErr error
	if h, ok := s.handlers[t.Name]; ok {
		runErr = h(ctx, t)
	} else {
		runErr = apperr.NotImplemented("no handler for task %s", t.Name)
	}

	status := model.TaskStatusExecuted
	result := model.TaskExecutionResult{ExecutedAt: s.now()}
	if runErr != nil {
		status = model.TaskStatusRunning
		result.Error = runErr.Error()
		log.WithError(runErr).Warn("task execution failed")
		s.metrics.Task(string(t.Name), "failed")
	} else {
		s.metrics.Task(string(t.Name), "executed")
	}
	if err := s.tasks.PushExecutionResult(ctx, t.ID, status, result); err != nil {
		log.WithError(err).Error("failed to record task result")
		if runErr == nil {
			return err
		}
	}
	return runErr
}

// ExecuteByName claims the next ready task named name and executes it. It
// returns nil, nil when no task was ready.
func (s *TaskService) ExecuteByName(ctx context.Context, name model.TaskName) (*model.Task, error) {
	t, err := s.tasks.Claim(ctx, name, s.now())
	if err != nil || t == nil {
		return nil, err
	}
	return t, s.Execute(ctx, *t)
}

// Retry makes Running tasks with tries left and last tried before interval
// ago Ready again.
func (s *TaskService) Retry(ctx context.Context, interval time.Duration) (int64, error) {
	return s.tasks.Retry(ctx, s.now().Add(-interval))
}

// Abort gives up on Running tasks without tries left whose last try is older
// than interval. Every aborted task is logged and published as an alert.
func (s *TaskService) Abort(ctx context.Context, interval time.Duration) ([]model.Task, error) {
	aborted, err := s.tasks.Abort(ctx, s.now().Add(-interval))
	if err != nil {
		return nil, err
	}
	for _, t := range aborted {
		lastErr := ""
		if n := len(t.ExecutionResults); n > 0 {
			lastErr = t.ExecutionResults[n-1].Error
		}
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"taskId":        t.ID,
			"name":          t.Name,
			"numberOfTried": t.NumberOfTried,
			"lastError":     lastErr,
		}).Error("task aborted")
		s.metrics.Task(string(t.Name), "aborted")

		if s.publisher == nil {
			continue
		}
		ev := queue.TaskAbortedEvent{
			TaskID:        t.ID,
			Name:          string(t.Name),
			NumberOfTried: t.NumberOfTried,
			LastError:     lastErr,
			Data:          string(t.Data),
			AbortedAt:     s.now().UTC().Format(time.RFC3339),
		}
		if err := s.publisher.PublishTaskAborted(ctx, ev); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("taskId", t.ID).Error("failed to publish task aborted alert")
		}
	}
	return aborted, nil
}
