package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"submux/internal/config"
	"submux/internal/jobs"
	"submux/internal/preflight"
	"submux/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service, dependency, and session status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newStatusPrinter(cmd.OutOrStdout())
			reqCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			p.section("Service")
			running, err := serviceRunning(cfg)
			switch {
			case err != nil:
				p.line("Service", statusWarn, err.Error())
			case running:
				p.line("Service", statusOK, "Running (lock held at "+cfg.LockPath()+")")
				renderActiveJobs(reqCtx, p, cfg)
			default:
				p.line("Service", statusInfo, "Not running")
			}
			p.blank()

			p.section("Dependencies")
			for _, dep := range preflight.CheckSystemDeps(reqCtx, cfg) {
				switch {
				case dep.Available && dep.Version != "":
					p.line(dep.Name, statusOK, fmt.Sprintf("%s (version %s)", dep.Command, dep.Version))
				case dep.Available:
					p.line(dep.Name, statusOK, dep.Command)
				default:
					p.line(dep.Name, statusError, dep.Detail)
				}
			}
			for _, result := range preflight.RunAll(reqCtx, cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusWarn
				}
				p.line(result.Name, kind, result.Detail)
			}
			p.blank()

			p.section("Sessions")
			renderSessionCount(reqCtx, p, cfg)
			return nil
		},
	}
}

// serviceRunning probes the single-instance lock without holding it.
func serviceRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock %s: %w", cfg.LockPath(), err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func renderActiveJobs(ctx context.Context, p *statusPrinter, cfg *config.Config) {
	client, err := newAPIClient(cfg)
	if err != nil {
		p.line("Jobs", statusWarn, err.Error())
		return
	}
	active, err := client.activeJobs(ctx)
	if err != nil {
		p.line("Jobs", statusWarn, err.Error())
		return
	}
	if len(active) == 0 {
		p.line("Jobs", statusInfo, "Idle")
		return
	}
	p.line("Jobs", statusOK, fmt.Sprintf("%d active", len(active)))
	fmt.Fprintln(p.w, renderTable(
		[]string{"User", "Mode", "State", "Running For"},
		jobRows(active, time.Now()),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
}

func jobRows(active []jobs.JobInfo, now time.Time) [][]string {
	rows := make([][]string, 0, len(active))
	for _, info := range active {
		rows = append(rows, []string{
			info.UserID,
			info.Mode.Label(),
			string(info.State),
			now.Sub(info.StartedAt).Round(time.Second).String(),
		})
	}
	return rows
}

func renderSessionCount(ctx context.Context, p *statusPrinter, cfg *config.Config) {
	store, err := session.Open(cfg)
	if err != nil {
		p.line("Store", statusError, err.Error())
		return
	}
	defer store.Close()
	sessions, err := store.List(ctx)
	if err != nil {
		p.line("Store", statusError, err.Error())
		return
	}
	p.line("Store", statusOK, store.Path())
	complete := 0
	for _, sess := range sessions {
		if sess.Complete() {
			complete++
		}
	}
	summary := fmt.Sprintf("%d open, %d ready to mux", len(sessions), complete)
	if stale := staleCount(sessions, cfg.StaleAge(), time.Now()); stale > 0 {
		summary += fmt.Sprintf(", %d idle past %dh", stale, cfg.Intake.StaleHours)
	}
	p.line("Sessions", statusInfo, summary)
}

func staleCount(sessions []*session.Session, maxAge time.Duration, now time.Time) int {
	count := 0
	for _, sess := range sessions {
		if now.Sub(sess.UpdatedAt) > maxAge {
			count++
		}
	}
	return count
}
