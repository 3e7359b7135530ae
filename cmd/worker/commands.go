package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/queue"
)

// loopFlags adds --loop and --interval to cmd.
func loopFlags(cmd *cobra.Command, loop *bool, interval *time.Duration, def time.Duration) {
	cmd.Flags().BoolVar(loop, "loop", false, "keep running until interrupted")
	cmd.Flags().DurationVar(interval, "interval", def, "pause between rounds with --loop")
}

// withEnv runs fn with a wired env and a signal-aware context.
func withEnv(fn func(ctx context.Context, e *env) error) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		ctx, cancel := signalContext()
		defer cancel()
		return fn(ctx, e)
	}
}

func expireCmd() *cobra.Command {
	var loop bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire in-progress transactions past their deadline",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			return repeat(ctx, e.logger, loop, interval, func(ctx context.Context) (bool, error) {
				n, err := e.app.Transactions.MakeExpired(ctx)
				if n > 0 {
					e.logger.WithField("count", n).Info("transactions expired")
				}
				return false, err
			})
		}),
	}
	loopFlags(cmd, &loop, &interval, 10*time.Second)
	return cmd
}

func exportCmd() *cobra.Command {
	var loop bool
	var interval time.Duration
	var statuses []string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Create the follow-up tasks of confirmed and expired transactions",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			return repeat(ctx, e.logger, loop, interval, func(ctx context.Context) (bool, error) {
				busy := false
				for _, s := range statuses {
					tx, err := e.app.Transactions.ExportTasks(ctx, model.TransactionStatus(s))
					if err != nil {
						return false, err
					}
					if tx != nil {
						busy = true
						e.logger.WithFields(logrus.Fields{"transactionId": tx.ID, "status": tx.Status, "tasks": len(tx.Tasks)}).Info("tasks exported")
					}
				}
				return busy, nil
			})
		}),
	}
	cmd.Flags().StringSliceVar(&statuses, "status", []string{string(model.TransactionStatusConfirmed), string(model.TransactionStatusExpired)}, "transaction statuses to export")
	loopFlags(cmd, &loop, &interval, time.Second)
	return cmd
}

func reexportCmd() *cobra.Command {
	var loop bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "reexport",
		Short: "Release transactions stuck in Exporting",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			return repeat(ctx, e.logger, loop, interval, func(ctx context.Context) (bool, error) {
				n, err := e.app.Transactions.ReexportTasks(ctx, e.cfg.Tasks.ReexportInterval)
				if n > 0 {
					e.logger.WithField("count", n).Warn("transactions released for re-export")
				}
				return false, err
			})
		}),
	}
	loopFlags(cmd, &loop, &interval, time.Minute)
	return cmd
}

func runCmd() *cobra.Command {
	var loop bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "run [task-name...]",
		Short: "Execute ready tasks; all task kinds when no name is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := taskNames(args)
			if err != nil {
				return err
			}
			return withEnv(func(ctx context.Context, e *env) error {
				return repeat(ctx, e.logger, loop, interval, func(ctx context.Context) (bool, error) {
					busy := false
					for _, name := range names {
						t, err := e.app.Tasks.ExecuteByName(ctx, name)
						if t != nil {
							busy = true
						}
						// a failed task stays Running and is retried later
						if err != nil && t == nil {
							return busy, err
						}
					}
					return busy, nil
				})
			})(cmd, args)
		},
	}
	loopFlags(cmd, &loop, &interval, time.Second)
	return cmd
}

func retryCmd() *cobra.Command {
	var loop bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Make failed tasks with tries left ready again",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			return repeat(ctx, e.logger, loop, interval, func(ctx context.Context) (bool, error) {
				n, err := e.app.Tasks.Retry(ctx, e.cfg.Tasks.RetryInterval)
				if n > 0 {
					e.logger.WithField("count", n).Info("tasks made ready for retry")
				}
				return false, err
			})
		}),
	}
	loopFlags(cmd, &loop, &interval, time.Minute)
	return cmd
}

func abortCmd() *cobra.Command {
	var loop bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Abort failed tasks without tries left and publish alerts",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			return repeat(ctx, e.logger, loop, interval, func(ctx context.Context) (bool, error) {
				_, err := e.app.Tasks.Abort(ctx, e.cfg.Tasks.AbortInterval)
				return false, err
			})
		}),
	}
	loopFlags(cmd, &loop, &interval, time.Minute)
	return cmd
}

func consumeEmailCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "consume-email",
		Short: "Consume order emails and append them to the email log",
		RunE: func(*cobra.Command, []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			ctx, cancel := signalContext()
			defer cancel()
			c := &queue.EmailConsumer{URL: e.cfg.RabbitMQURL, Dir: dir, Logger: e.logger}
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "logs", "directory of email.log")
	return cmd
}
