package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pixload/internal/config"
	"pixload/internal/report"
	"pixload/internal/scenario"
	"pixload/internal/storage"
	"pixload/internal/tui/live"
)

type runResult struct {
	rep report.Report
	err error
}

// Run executes one named scenario end to end: progress to the terminal
// (plain line or live dashboard), then the report to console and file, then
// the history store.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger, name string, liveMode bool) error {
	sc, err := scenario.ByName(name)
	if err != nil {
		return err
	}

	printHeader(sc, cfg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := scenario.NewRunner(cfg, logger)
	results := make(chan runResult, 1)
	go func() {
		rep, err := runner.Run(runCtx, sc)
		results <- runResult{rep, err}
	}()

	var res runResult
	if liveMode {
		res = watchLive(sc, runner, results, cancel)
	} else {
		res = watchPlain(runner, results)
	}
	if res.err != nil {
		return res.err
	}

	if err := report.Emit(res.rep, os.Stdout, cfg.ReportDir); err != nil {
		// The console output above is the sink of record; the file
		// failure is surfaced and the run still counts.
		logger.Warn("could not persist report file", zap.Error(err))
	} else {
		fmt.Printf("💾 Report saved to %s\n", report.FilePath(cfg.ReportDir, sc.Name))
	}

	saveHistory(logger, res.rep)
	return nil
}

func watchLive(sc scenario.Scenario, runner *scenario.Runner, results chan runResult, cancel context.CancelFunc, opts ...tea.ProgramOption) runResult {
	p := tea.NewProgram(live.NewModel(sc.Name, runner.Updates), opts...)

	done := make(chan runResult, 1)
	go func() {
		res := <-results
		done <- res
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Printf("live view failed: %v\n", err)
	}
	// Quitting the dashboard stops the run, not just the view: cut the
	// run context so the scheduler drains and the report covers what ran.
	cancel()
	return <-done
}

func watchPlain(runner *scenario.Runner, results chan runResult) runResult {
	for {
		select {
		case res := <-results:
			fmt.Println()
			return res
		case u, ok := <-runner.Updates:
			if !ok {
				// Run is winding down; wait for the report.
				res := <-results
				fmt.Println()
				return res
			}
			pct := 0.0
			if u.Total > 0 {
				pct = float64(u.Elapsed) / float64(u.Total)
			}
			if pct > 1.0 {
				pct = 1.0
			}
			fmt.Printf("\r%s %3.0f%% | %s/%s | %s | workers: %3d | reqs: %d | err: %.1f%%   ",
				progressBar(pct, 20), pct*100,
				u.Elapsed.Round(time.Second), u.Total,
				u.State, u.Active, u.Requests, u.ErrorRate*100,
			)
		}
	}
}

func printHeader(sc scenario.Scenario, cfg config.Config) {
	fmt.Printf("\n🚀 PIXLOAD — %s\n", strings.ToUpper(sc.Name))
	fmt.Printf("======================================================================\n")
	fmt.Printf("Target     : %s\n", cfg.TargetURL)
	fmt.Printf("Scenario   : %s (%s)\n", sc.Name, sc.Description)
	fmt.Printf("Discipline : %s\n", sc.Profile.Discipline)
	fmt.Printf("Stages     : %d (total %s)\n", len(sc.Profile.Stages), sc.Profile.TotalDuration())
	fmt.Printf("Timeout    : %s\n", sc.Timeout)
	fmt.Printf("======================================================================\n\n")
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func saveHistory(logger *zap.Logger, rep report.Report) {
	store, err := storage.Open()
	if err != nil {
		logger.Warn("history store unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.Save(storage.RecordFromReport(rep)); err != nil {
		logger.Warn("could not record run history", zap.Error(err))
	}
}

// History prints the most recent run summaries.
func History(limit int) error {
	store, err := storage.Open()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No recorded runs yet.")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-20s  %-6s  %10s  %8s  %10s\n",
		"RUN", "SCENARIO", "WHEN", "PASS", "REQUESTS", "ERR%", "P95 ms")
	for _, rec := range records {
		pass := "yes"
		if !rec.Passed {
			pass = "no"
		}
		fmt.Printf("%-36s  %-10s  %-20s  %-6s  %10d  %7.2f%%  %10.1f\n",
			rec.ID, rec.Scenario, rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			pass, rec.TotalRequests, rec.ErrorRate*100, rec.P95Ms)
	}
	return nil
}
