package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the environment-driven configuration surface. Every field has a
// default usable against a locally running mock gateway.
type Config struct {
	// TargetURL is the base URL of the image-generation gateway under test.
	TargetURL string `json:"target_url" mapstructure:"target_url"`
	// APIKey is sent as a bearer credential on every request.
	APIKey string `json:"-" mapstructure:"api_key"`
	// ReportDir is the root of the reports tree; per-scenario files land in
	// <ReportDir>/latest/<scenario>.json.
	ReportDir string `json:"report_dir" mapstructure:"report_dir"`
	// Debug enables per-failure diagnostic logging.
	Debug bool `json:"debug" mapstructure:"debug"`
}

// Load reads configuration from PIXLOAD_-prefixed environment variables
// (PIXLOAD_TARGET_URL, PIXLOAD_API_KEY, PIXLOAD_REPORT_DIR, PIXLOAD_DEBUG).
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("pixload")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("target_url", "http://localhost:8080")
	v.SetDefault("api_key", "test-api-key")
	v.SetDefault("report_dir", "reports")
	v.SetDefault("debug", false)

	return Config{
		TargetURL: strings.TrimRight(v.GetString("target_url"), "/"),
		APIKey:    v.GetString("api_key"),
		ReportDir: v.GetString("report_dir"),
		Debug:     v.GetBool("debug"),
	}
}

// NewLogger builds the process logger. Debug mode switches to the
// development config so per-request failures become visible.
func NewLogger(debug bool) *zap.Logger {
	if debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
