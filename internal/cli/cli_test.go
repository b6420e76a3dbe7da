package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixload/internal/config"
	"pixload/internal/report"
	"pixload/internal/scenario"
)

// Quitting the dashboard must stop the run itself, not just the view: the
// stand-in run below only finishes once its context is cancelled, so the
// test hangs if watchLive forgets to cut it.
func TestWatchLiveQuitStopsRun(t *testing.T) {
	sc, err := scenario.ByName("baseline")
	require.NoError(t, err)

	runner := scenario.NewRunner(config.Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan runResult, 1)
	go func() {
		<-ctx.Done()
		close(runner.Updates)
		results <- runResult{rep: report.Report{Scenario: sc.Name}}
	}()

	done := make(chan runResult, 1)
	go func() {
		done <- watchLive(sc, runner, results, cancel,
			tea.WithInput(strings.NewReader("q")),
			tea.WithOutput(io.Discard),
			tea.WithoutRenderer(),
		)
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, sc.Name, res.rep.Scenario)
	case <-time.After(5 * time.Second):
		t.Fatal("quitting the live view did not stop the run")
	}
}
