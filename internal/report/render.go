package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pixload/internal/tui/styles"
)

// Emit writes the report to both sinks from the same in-memory snapshot: a
// human-readable rendering to w and a JSON document to
// <dir>/latest/<scenario>.json. The console write always happens; a file
// error is returned for the caller to surface, with the console output
// standing as the sink of record.
func Emit(r Report, w io.Writer, dir string) error {
	fmt.Fprintln(w, Render(r))
	return WriteFile(r, dir)
}

// FilePath is the per-scenario report location under the reports root.
func FilePath(dir, scenario string) string {
	return filepath.Join(dir, "latest", scenario+".json")
}

// WriteFile persists the JSON form of the report.
func WriteFile(r Report, dir string) error {
	path := FilePath(dir, r.Scenario)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Render produces the styled console representation.
func Render(r Report) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("PIXLOAD REPORT — %s", strings.ToUpper(r.Scenario))))
	b.WriteString("\n")
	b.WriteString(styles.Subtle.Render(fmt.Sprintf("run %s · %s · target %s",
		r.RunID, r.Timestamp.Format("2006-01-02 15:04:05 MST"), r.Config.TargetURL)))
	b.WriteString("\n\n")

	s := r.Summary
	b.WriteString(styles.Box.Render(strings.Join([]string{
		row("Requests", fmt.Sprintf("%d", s.TotalRequests)),
		row("Succeeded", fmt.Sprintf("%d", s.Succeeded)),
		row("Failed", fmt.Sprintf("%d", s.Failed)),
		row("Error rate", fmt.Sprintf("%.2f%%", s.ErrorRate*100)),
		row("Throughput", fmt.Sprintf("%.2f req/s", s.Throughput)),
		row("Duration", fmt.Sprintf("%.1fs", s.DurationSec)),
	}, "\n")))
	b.WriteString("\n")

	b.WriteString(styles.Box.Render(strings.Join([]string{
		row("Latency avg", fmt.Sprintf("%.1f ms", s.Latency.AvgMs)),
		row("p50", fmt.Sprintf("%.1f ms", s.Latency.P50Ms)),
		row("p90", fmt.Sprintf("%.1f ms", s.Latency.P90Ms)),
		row("p95", fmt.Sprintf("%.1f ms", s.Latency.P95Ms)),
		row("p99", fmt.Sprintf("%.1f ms", s.Latency.P99Ms)),
		row("max", fmt.Sprintf("%.1f ms", s.Latency.MaxMs)),
	}, "\n")))
	b.WriteString("\n")

	if s.RequestedArrivals > 0 {
		b.WriteString(styles.Box.Render(strings.Join([]string{
			row("Scheduled arrivals", fmt.Sprintf("%d", s.RequestedArrivals)),
			row("Shed arrivals", fmt.Sprintf("%d", s.DroppedArrivals)),
		}, "\n")))
		b.WriteString("\n")
	}

	if s.HealthChecks > 0 {
		b.WriteString(styles.Box.Render(strings.Join([]string{
			row("Health probes", fmt.Sprintf("%d", s.HealthChecks)),
			row("Probe failures", fmt.Sprintf("%d", s.HealthCheckFailed)),
		}, "\n")))
		b.WriteString("\n")
	}

	if len(r.Thresholds) > 0 {
		lines := make([]string, 0, len(r.Thresholds))
		for _, res := range r.Thresholds {
			mark := styles.Success.Render("✓")
			if !res.Pass {
				mark = styles.Error.Render("✗")
			}
			lines = append(lines, fmt.Sprintf("%s %s (actual %.2f)", mark, res.Threshold, res.Actual))
		}
		b.WriteString(styles.Box.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if bp := r.Analysis.BreakingPoint; bp != nil {
		if bp.Reached {
			b.WriteString(styles.Warn.Render(fmt.Sprintf(
				"Breaking point reached: %.1f%% failures at %.1f req/s — sustainable estimate %.1f req/s",
				bp.FailureRate*100, bp.ObservedRPS, bp.SustainableRPS)))
		} else {
			b.WriteString(styles.Success.Render(fmt.Sprintf(
				"Breaking point not reached (failure rate %.1f%% below %.0f%% trigger)",
				bp.FailureRate*100, bp.TriggerRate*100)))
		}
		b.WriteString("\n")
	}

	if deg := r.Analysis.Degradation; deg != nil {
		if deg.Stable {
			b.WriteString(styles.Success.Render("Stability verdict: STABLE"))
		} else {
			b.WriteString(styles.Error.Render("Stability verdict: DEGRADED — " + strings.Join(deg.Indicators, ", ")))
		}
		b.WriteString("\n")
	}

	for _, rec := range r.Analysis.Recommendations {
		b.WriteString(styles.Warn.Render("→ " + rec))
		b.WriteString("\n")
	}

	verdict := styles.Success.Render("PASSED")
	if !r.Passed {
		verdict = styles.Error.Render("FAILED")
	}
	b.WriteString("\n" + styles.Text.Render("Thresholds: ") + verdict + "\n")

	return b.String()
}

func row(label, value string) string {
	return fmt.Sprintf("%-20s %s", styles.Subtle.Render(label), styles.Value.Render(value))
}
