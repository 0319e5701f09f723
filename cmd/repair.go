package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal/repair"
	repairpostgres "github.com/Lingeshemvigo/lms-backend/internal/repair/postgres"
	"github.com/Lingeshemvigo/lms-backend/pkg/logger"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Deduplicate payment rows and backfill transaction ids",
	Long:  `Run the payment repair job once, or keep it running on a cron schedule with --schedule.`,
	Run: func(cmd *cobra.Command, args []string) {
		runRepair()
	},
}

var (
	repairScheduled bool
	repairWorkers   int
)

func runRepair() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	sqlxDB, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init orm: %v\n", err)
		os.Exit(1)
	}

	workers := cfg.Repair.Workers
	if repairWorkers > 0 {
		workers = repairWorkers
	}

	repo := repairpostgres.NewRepairRepository(db)
	job := repair.NewJob(repo, repair.Config{Workers: workers}, log)

	if !repairScheduled {
		report, err := job.Run(context.Background())
		if err != nil {
			log.Error("repair run failed", "error", err)
			os.Exit(1)
		}
		log.Info("repair run finished",
			"scanned", report.ScannedPayments,
			"duplicate_groups", report.DuplicateGroups,
			"deleted", report.DeletedPayments,
			"placeholders_assigned", report.PlaceholdersAssigned,
			"errors", report.Errors,
			"duration", report.Duration)
		return
	}

	scheduler := repair.NewScheduler(job, cfg.Repair.Schedule, log)
	if err := scheduler.Start(); err != nil {
		log.Error("failed to start repair scheduler", "error", err)
		os.Exit(1)
	}

	log.Info("repair scheduler is running. Press Ctrl+C to stop.", "schedule", cfg.Repair.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received signal, shutting down repair scheduler", "signal", sig)
	scheduler.Stop()
	log.Info("repair scheduler stopped")
}

func init() {
	repairCmd.Flags().BoolVar(&repairScheduled, "schedule", false, "Keep running on the configured cron schedule instead of once")
	repairCmd.Flags().IntVar(&repairWorkers, "workers", 0, "Number of dedup workers (overrides config)")

	rootCmd.AddCommand(repairCmd)
}
