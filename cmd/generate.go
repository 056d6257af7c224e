package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rotacore/rota/app"
	"github.com/rotacore/rota/config"
	"github.com/rotacore/rota/core/orchestrator"
	"github.com/rotacore/rota/infra/logger"
)

var (
	rosterPath string
	shiftsPath string
	rulesPath  string
	scheduleID string
	department string
	fromStr    string
	toStr      string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a schedule for a horizon",
	RunE:  generate,
}

func init() {
	generateCmd.Flags().StringVar(&rosterPath, "roster", "roster.yaml", "employee roster file")
	generateCmd.Flags().StringVar(&shiftsPath, "shifts", "shifts.yaml", "shift demand file")
	generateCmd.Flags().StringVar(&rulesPath, "rules", "rules.yaml", "structured rules file")
	generateCmd.Flags().StringVar(&scheduleID, "schedule", "", "schedule identifier")
	generateCmd.Flags().StringVar(&department, "department", "", "restrict to one department")
	generateCmd.Flags().StringVar(&fromStr, "from", "", "horizon start (2006-01-02 or RFC3339)")
	generateCmd.Flags().StringVar(&toStr, "to", "", "horizon end (2006-01-02 or RFC3339)")
	rootCmd.AddCommand(generateCmd)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func generate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return fmt.Errorf("parse --from: %w", err)
	}
	to, err := parseTime(toStr)
	if err != nil {
		return fmt.Errorf("parse --to: %w", err)
	}

	svc, err := app.New(cfg, app.Inputs{Roster: rosterPath, Shifts: shiftsPath, Rules: rulesPath})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Generate(ctx, orchestrator.GenerateSpec{
		ScheduleID: scheduleID,
		WeekStart:  from,
		WeekEnd:    to,
		Department: department,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
