// =============================================================================
// Sigflow 主入口
// =============================================================================
// 命令行入口，包含流水线运行、检查点管理、数据库迁移、运维 HTTP 服务
//
// 使用方法:
//
//	sigflow run --text "..."              # 运行演示流水线
//	sigflow resume --session <id>         # 从检查点恢复流水线
//	sigflow checkpoints list              # 列出检查点
//	sigflow export-session --session <id> # 导出会话记录
//	sigflow migrate up                    # 运行数据库迁移
//	sigflow serve                         # 启动运维 HTTP 服务
//	sigflow version                       # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/sigflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "resume":
		runResume(os.Args[2:])
	case "checkpoints":
		runCheckpoints(os.Args[2:])
	case "export-session":
		runExportSession(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🔧 配置与日志初始化
// =============================================================================

// loadConfig 加载并验证配置，路径为空时使用默认值 + 环境变量
func loadConfig(configPath string) (*config.Config, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// mustLoadConfig loadConfig 的退出版本，CLI 子命令共用
func mustLoadConfig(configPath string) *config.Config {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// initLogger 根据配置构建 zap logger。
// 返回 AtomicLevel，serve 模式下配置热更新可以动态调整日志级别。
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLogLevel(cfg.Level))

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            level,
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger, level
}

func parseLogLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("Sigflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Sigflow - typed LLM pipelines with schema correction

Usage:
  sigflow <command> [options]

Commands:
  run             Run the demo extraction pipeline
  resume          Resume a pipeline run from its checkpoint
  checkpoints     Inspect and manage stored checkpoints
  export-session  Dump the message transcript of a backend session
  migrate         Database migration commands
  serve           Start the ops HTTP server
  version         Show version information
  help            Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)
  --text <text>     Input text for the demo pipeline
  --session <id>    Pipeline session ID (default: generated)

Options for 'resume':
  --config <path>   Path to configuration file (YAML)
  --session <id>    Pipeline session ID to resume (required)

Checkpoint subcommands:
  checkpoints list [--pipeline <name>]   List stored checkpoints
  checkpoints show <pipeline> <session>  Print one checkpoint's state
  checkpoints rm <pipeline> <session>    Delete a checkpoint

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  sigflow run --text "The new release is fast and stable."
  sigflow resume --session run-42
  sigflow checkpoints list --pipeline extract
  sigflow serve --config /etc/sigflow/config.yaml
  sigflow migrate up
  sigflow version`)
}
