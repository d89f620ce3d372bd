// Package config resolves the environment variables enumerated in spec
// §6 plus an optional YAML overlay file, following the teacher's
// flag-then-env-then-default precedence (cmd/dev-console/cli.go's
// resolveCLIConfig), extended here with a config file layer beneath env.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeouts holds every tunable timeout from spec §6, already clamped.
type Timeouts struct {
	WebInteractive time.Duration
	WebStepHard    time.Duration
	WebRunHard     time.Duration
	LearningWindow time.Duration
	OIBridge       time.Duration
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Timeouts       Timeouts
	NoiseMode      string
	OIBridgeCmd    string
	OIBridgeArgs   []string
	OpenAIAPIKey   string
	Display        string
}

// fileOverlay is the shape of an optional YAML config file; any field
// left zero-valued does not override the environment/default value.
type fileOverlay struct {
	NoiseMode      string `yaml:"noise_mode"`
	OIBridgeCmd    string `yaml:"oi_bridge_command"`
	WebInteractive int    `yaml:"web_interactive_timeout_seconds"`
	WebStepHard    int    `yaml:"web_step_hard_timeout_seconds"`
	WebRunHard     int    `yaml:"web_run_hard_timeout_seconds"`
	LearningWindow int    `yaml:"learning_window_seconds"`
}

// Load resolves configuration from defaults, an optional YAML file at
// configPath (ignored if empty or missing), and finally environment
// variables, which always win — matching spec §6 exactly while letting a
// team check a shared default file into version control.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Timeouts: Timeouts{
			WebInteractive: 8 * time.Second,
			WebStepHard:    20 * time.Second,
			WebRunHard:     120 * time.Second,
			LearningWindow: 25 * time.Second,
			OIBridge:       300 * time.Second,
		},
		NoiseMode:    "minimal",
		OIBridgeCmd:  "oi",
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		Display:      os.Getenv("DISPLAY"),
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var overlay fileOverlay
			if err := yaml.Unmarshal(data, &overlay); err != nil {
				return cfg, err
			}
			applyOverlay(&cfg, overlay)
		}
	}

	applyEnv(&cfg)
	clampTimeouts(&cfg.Timeouts)
	return cfg, nil
}

func applyOverlay(cfg *Config, o fileOverlay) {
	if o.NoiseMode != "" {
		cfg.NoiseMode = o.NoiseMode
	}
	if o.OIBridgeCmd != "" {
		cfg.OIBridgeCmd = o.OIBridgeCmd
	}
	if o.WebInteractive > 0 {
		cfg.Timeouts.WebInteractive = time.Duration(o.WebInteractive) * time.Second
	}
	if o.WebStepHard > 0 {
		cfg.Timeouts.WebStepHard = time.Duration(o.WebStepHard) * time.Second
	}
	if o.WebRunHard > 0 {
		cfg.Timeouts.WebRunHard = time.Duration(o.WebRunHard) * time.Second
	}
	if o.LearningWindow > 0 {
		cfg.Timeouts.LearningWindow = time.Duration(o.LearningWindow) * time.Second
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OI_BRIDGE_COMMAND"); v != "" {
		cfg.OIBridgeCmd = v
	}
	if v := os.Getenv("OI_BRIDGE_ARGS"); v != "" {
		cfg.OIBridgeArgs = splitArgs(v)
	}
	if v := envSeconds("OI_BRIDGE_TIMEOUT_SECONDS"); v > 0 {
		cfg.Timeouts.OIBridge = v
	}
	if v := envSeconds("BRIDGE_WEB_INTERACTIVE_TIMEOUT_SECONDS"); v > 0 {
		cfg.Timeouts.WebInteractive = v
	}
	if v := envSeconds("BRIDGE_WEB_STEP_HARD_TIMEOUT_SECONDS"); v > 0 {
		cfg.Timeouts.WebStepHard = v
	}
	if v := envSeconds("BRIDGE_WEB_RUN_HARD_TIMEOUT_SECONDS"); v > 0 {
		cfg.Timeouts.WebRunHard = v
	}
	if v := envSeconds("BRIDGE_LEARNING_WINDOW_SECONDS"); v > 0 {
		cfg.Timeouts.LearningWindow = v
	}
	if v := os.Getenv("BRIDGE_OBSERVER_NOISE_MODE"); v == "minimal" || v == "debug" {
		cfg.NoiseMode = v
	}
}

func envSeconds(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// clampTimeouts enforces spec §6's explicit clamp: interactive timeout
// must be within [1, 60] seconds.
func clampTimeouts(t *Timeouts) {
	min := 1 * time.Second
	max := 60 * time.Second
	if t.WebInteractive < min {
		t.WebInteractive = min
	}
	if t.WebInteractive > max {
		t.WebInteractive = max
	}
}

func splitArgs(s string) []string {
	var out []string
	cur := ""
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
		default:
			cur += string(r)
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
