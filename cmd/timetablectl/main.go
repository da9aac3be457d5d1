package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/app"
	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

var (
	department   string
	semester     string
	academicYear string
	sections     []string
	at           string
	withSlots    bool
)

func main() {
	cmdRoot := &cobra.Command{
		Use:           "timetablectl",
		Short:         "Operator tooling for the department timetable service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmdMigrate := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  commandMigrate,
	}
	cmdRoot.AddCommand(cmdMigrate)

	cmdGenerate := &cobra.Command{
		Use:   "generate",
		Short: "wipe and regenerate the timetable of one scope",
		Args:  cobra.NoArgs,
		RunE:  commandGenerate,
	}
	cmdGenerate.Flags().StringVar(&department, "department", "", "department name")
	cmdGenerate.Flags().StringVar(&semester, "semester", "", "semester")
	cmdGenerate.Flags().StringVar(&academicYear, "academic-year", "", "academic year, e.g. 2024-2025")
	cmdGenerate.Flags().StringSliceVar(&sections, "sections", nil, "explicit sections to cover (defaults to the catalog's sections)")
	cmdGenerate.Flags().BoolVar(&withSlots, "with-slots", false, "include every generated slot in the output")
	for _, name := range []string{"department", "semester", "academic-year"} {
		_ = cmdGenerate.MarkFlagRequired(name)
	}
	cmdRoot.AddCommand(cmdGenerate)

	cmdCurrent := &cobra.Command{
		Use:   "current-slot",
		Short: "print the timetable day and hour for an instant",
		Args:  cobra.NoArgs,
		RunE:  commandCurrentSlot,
	}
	cmdCurrent.Flags().StringVar(&at, "at", "", "RFC3339 instant (defaults to now)")
	cmdRoot.AddCommand(cmdCurrent)

	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func commandMigrate(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	return database.RunMigrations(db.DB, logr)
}

func commandGenerate(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer container.Close()

	result, err := container.Generator.Generate(ctx, dto.GenerateTimetableRequest{
		Department:   department,
		Semester:     semester,
		AcademicYear: academicYear,
		Sections:     sections,
		RequestedBy:  "timetablectl",
	})
	if err != nil {
		return err
	}
	if !withSlots {
		result.Slots = nil
	}
	return printJSON(cmd, result)
}

func commandCurrentSlot(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("load SCHEDULER_TIMEZONE: %w", err)
	}

	instant := time.Now()
	if at != "" {
		instant, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
	}

	query := service.NewTimetableQueryService(nil, nil, nil, nil, nil, service.TimetableQueryConfig{
		TimetableConfig: service.TimetableConfig{Days: cfg.Scheduler.Days, Hours: cfg.Scheduler.Hours},
		HourWindows:     cfg.Scheduler.HourWindows,
		Location:        loc,
	})
	return printJSON(cmd, query.CurrentSlot(instant))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
