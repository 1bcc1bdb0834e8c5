package main

// Run the weekly-reset scheduler:
//   go run ./cmd/scheduler               # cron mode, RESET_SCHEDULE in UTC
//   go run ./cmd/scheduler -run-once     # one batch reset, then exit

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"mealplan-backend/internal/activity"
	"mealplan-backend/internal/shared/config"
	"mealplan-backend/internal/shared/storage/db"
	"mealplan-backend/internal/shared/telemetry"
)

const defaultRunTimeout = 2 * time.Minute

type resetter interface {
	RunScheduledReset(ctx context.Context) (activity.BatchResult, error)
}

func main() {
	cfg := config.Load()
	defer telemetry.Sync()

	schedule := flag.String("schedule", cfg.ResetSchedule, "cron spec (UTC) for the batch reset")
	runOnce := flag.Bool("run-once", false, "run one batch reset and exit")
	timeout := flag.Duration("timeout", defaultRunTimeout, "per-run timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultSchedulerOptions()))
	if err != nil {
		telemetry.Error("scheduler.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	svc := activity.NewPostgresService(activity.NewPGStore(sqlDB))

	if *runOnce {
		if _, err := runReset(ctx, svc, *timeout); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, svc, *schedule, *timeout); err != nil {
		telemetry.Error("scheduler.exit", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// serve runs the reset on schedule until ctx is done. A catch-up run fires on
// start so a scheduler that was down over midnight does not leave stale rows
// waiting for the next tick; the reset is idempotent so this is safe.
func serve(ctx context.Context, svc resetter, schedule string, timeout time.Duration) error {
	c, err := newCron(ctx, svc, schedule, timeout)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := runReset(gctx, svc, timeout)
		if err != nil {
			telemetry.Warn("scheduler.catch_up_failed", map[string]any{"error": err.Error()})
		}
		return nil
	})
	g.Go(func() error {
		c.Start()
		telemetry.Info("scheduler.start", map[string]any{"schedule": schedule})
		<-gctx.Done()
		<-c.Stop().Done()
		telemetry.Info("scheduler.stop", nil)
		return nil
	})
	return g.Wait()
}

func newCron(ctx context.Context, svc resetter, schedule string, timeout time.Duration) (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		_, _ = runReset(ctx, svc, timeout)
	}); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return c, nil
}

func runReset(ctx context.Context, svc resetter, timeout time.Duration) (activity.BatchResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return svc.RunScheduledReset(runCtx)
}

// cronLogger routes cron's internal logs through telemetry.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	telemetry.Info("cron."+msg, kvFields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	telemetry.Error("cron."+msg, fields)
}

func kvFields(kv []any) map[string]any {
	fields := make(map[string]any, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
