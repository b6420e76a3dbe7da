package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pixload/internal/banner"
	"pixload/internal/cli"
	"pixload/internal/config"
	"pixload/internal/mock"
	"pixload/internal/scenario"
)

var (
	// run flags
	liveMode bool

	// history flags
	historyLimit int
)

var rootCmd = &cobra.Command{
	Use:   "pixload",
	Short: "pixload - load testing for image generation gateways",
	Long: `
pixload drives synthetic load against an image-generation gateway and
characterizes its behavior: baseline numbers, stress ramps, long soaks,
breakpoint escalation and traffic spikes.

Configuration comes from PIXLOAD_-prefixed environment variables
(PIXLOAD_TARGET_URL, PIXLOAD_API_KEY, PIXLOAD_REPORT_DIR, PIXLOAD_DEBUG),
with defaults aimed at a locally running mock gateway.`,
}

var runCmd = &cobra.Command{
	Use:       "run <scenario>",
	Short:     "Run one load scenario (" + strings.Join(scenario.Names(), ", ") + ")",
	Args:      cobra.ExactArgs(1),
	ValidArgs: scenario.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := config.NewLogger(cfg.Debug)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return cli.Run(ctx, cfg, logger, args[0], liveMode)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past run summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.History(historyLimit)
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a local mock image-generation gateway",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		failRate, _ := cmd.Flags().GetFloat64("fail-rate")
		capacity, _ := cmd.Flags().GetInt("capacity")
		degraded, _ := cmd.Flags().GetBool("degraded")

		cfg := config.Load()
		mock.Start(mock.ServerConfig{
			Port:              port,
			APIKey:            cfg.APIKey,
			MinLatency:        200 * time.Millisecond,
			MaxLatency:        1500 * time.Millisecond,
			FailureRate:       failRate,
			CapacityPerSecond: capacity,
			Degraded:          degraded,
		})
		select {}
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().BoolVar(&liveMode, "live", false, "Show a live dashboard instead of the plain progress line")
	rootCmd.AddCommand(runCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Max runs to list")
	rootCmd.AddCommand(historyCmd)

	mockCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	mockCmd.Flags().Float64("fail-rate", 0, "Probability a generation request fails")
	mockCmd.Flags().Int("capacity", 0, "Requests per second before the mock saturates (0 = unlimited)")
	mockCmd.Flags().Bool("degraded", false, "Report degraded health")
	rootCmd.AddCommand(mockCmd)
}
