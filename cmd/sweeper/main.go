package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/constants"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// SweeperApp holds the usecases the cron jobs drive.
type SweeperApp struct {
	RetryUsecase *biz.RetryUsecase
}

// newLogger creates the sweeper logger.
func newLogger(c *conf.Bootstrap) klog.Logger {
	return klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.name", "payment-sweeper",
	)
}

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// The sweeper has no use for live config reloads; a one-shot yaml
	// parse is enough.
	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}
	if err := bc.Validate(); err != nil {
		panic(err)
	}

	app, cleanup, err := wireApp(bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	retrySpec := constants.DefaultRetrySweepSpec
	expirySpec := constants.DefaultExpirySweepSpec
	if bc.Sweep != nil {
		if bc.Sweep.RetrySpec != "" {
			retrySpec = bc.Sweep.RetrySpec
		}
		if bc.Sweep.ExpirySpec != "" {
			expirySpec = bc.Sweep.ExpirySpec
		}
	}

	cronScheduler := cron.New(cron.WithSeconds())

	// 1. Retry sweep: claim due schedules and re-run their checkouts.
	_, err = cronScheduler.AddFunc(retrySpec, func() {
		log.Println("[SWEEP] Starting retry sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		result, err := app.RetryUsecase.ProcessDueRetries(ctx)
		if err != nil {
			log.Printf("[SWEEP] Error processing due retries: %v", err)
			return
		}
		log.Printf("[SWEEP] Retry sweep done: due=%d claimed=%d initiated=%d completed=%d exhausted=%d skipped=%d",
			result.Due, result.Claimed, result.Initiated, result.Completed, result.Exhausted, result.Skipped)
	})
	if err != nil {
		log.Printf("Failed to add retry sweep job: %v", err)
	}

	// 2. Session expiry: close checkout sessions past their deadline.
	_, err = cronScheduler.AddFunc(expirySpec, func() {
		log.Println("[SWEEP] Starting session expiry...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		n, err := app.RetryUsecase.ExpireSessions(ctx)
		if err != nil {
			log.Printf("[SWEEP] Error expiring sessions: %v", err)
			return
		}
		log.Printf("[SWEEP] Expired %d sessions", n)
	})
	if err != nil {
		log.Printf("Failed to add session expiry job: %v", err)
	}

	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Sweeper started successfully")
	log.Printf("  - Retry sweep:    %s", retrySpec)
	log.Printf("  - Session expiry: %s", expirySpec)
	log.Println("========================================")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Sweep jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Sweep jobs forced to stop after timeout")
	}
}
