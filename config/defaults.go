// =============================================================================
// 📦 Sigflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Log:        DefaultLogConfig(),
		Backend:    DefaultBackendConfig(),
		Correction: DefaultCorrectionConfig(),
		JQ:         DefaultJQConfig(),
		Checkpoint: DefaultCheckpointConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
		Server:     DefaultServerConfig(),
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultBackendConfig 返回默认后端配置
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Kind:    "opencode",
		BaseURL: "http://127.0.0.1:4096",
		Bin:     "claude",
		Agent:   "default",
		Model:   "anthropic/claude-sonnet-4",
		Timeout: 4 * time.Minute,
		Rate: RateConfig{
			RPS:   0,
			Burst: 0,
		},
	}
}

// DefaultCorrectionConfig 返回默认修正配置
func DefaultCorrectionConfig() CorrectionConfig {
	return CorrectionConfig{
		MaxRounds: 3,
		MaxFields: 5,
		Strategy:  "jsonpatch",
	}
}

// DefaultJQConfig 返回默认 jq 配置
func DefaultJQConfig() JQConfig {
	return JQConfig{
		Binary:  "jq",
		Timeout: 10 * time.Second,
	}
}

// DefaultCheckpointConfig 返回默认检查点配置
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Type: "file",
		Dir:  "./checkpoints",
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      0,
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			User:    "sigflow",
			Name:    "sigflow",
			SSLMode: "disable",
		},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     false,
		Endpoint:    "localhost:4317",
		ServiceName: "sigflow",
		SampleRatio: 1.0,
		Insecure:    true,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "sigflow",
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8097",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Auth: AuthConfig{
			Enabled: false,
		},
		Rate: RateConfig{
			RPS:   10,
			Burst: 20,
		},
	}
}
