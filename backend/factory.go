package backend

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/internal/metrics"
)

// Backend kinds accepted by configuration.
const (
	KindOpencode  = "opencode"
	KindClaudeCLI = "claude-cli"
)

// Config selects and tunes a backend. Zero values fall back to the adapter
// defaults.
type Config struct {
	Kind       string
	BaseURL    string // opencode server address
	Bin        string // claude-cli binary, also used for alt-form models
	TimeoutSec int
	RPS        float64 // 0 disables throttling
	Burst      int
}

// New builds the configured backend, throttled when RPS is set and always
// instrumented. An opencode primary is wrapped in a Router so alt-form
// model refs fall through to the claude CLI; a claude-cli primary handles
// alt refs natively.
func New(cfg Config, logger *zap.Logger, collector *metrics.Collector) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	var inner Backend
	switch cfg.Kind {
	case KindOpencode, "":
		primary := NewOpencode(OpencodeConfig{BaseURL: cfg.BaseURL, Timeout: timeout}, logger)
		alt := NewClaudeCLI(ClaudeCLIConfig{Bin: cfg.Bin, Timeout: timeout}, logger)
		inner = NewRouter(primary, alt, logger)
	case KindClaudeCLI:
		inner = NewClaudeCLI(ClaudeCLIConfig{Bin: cfg.Bin, Timeout: timeout}, logger)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}

	if cfg.RPS > 0 {
		inner = NewRateLimited(inner, cfg.RPS, cfg.Burst)
	}
	return NewInstrumented(inner, logger, collector), nil
}
