package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/checkpoint"
	"github.com/BaSui01/sigflow/config"
	"github.com/BaSui01/sigflow/internal/metrics"
	"github.com/BaSui01/sigflow/patch"
	"github.com/BaSui01/sigflow/pipeline"
	"github.com/BaSui01/sigflow/predict"
	"github.com/BaSui01/sigflow/signature"
)

// =============================================================================
// 🏃 run / resume 命令
// =============================================================================

const demoPipeline = "extract"

// runRun 运行演示流水线：从输入文本抽取结构化摘要，再生成标题
func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	text := fs.String("text", "", "Input text for the demo pipeline")
	session := fs.String("session", "", "Pipeline session ID (default: generated)")
	fs.Parse(args)

	if *text == "" {
		fmt.Fprintln(os.Stderr, "run: --text is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger, _ := initLogger(cfg.Log)
	defer logger.Sync()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := pipeline.New(demoPipeline, rt.Conversation(""),
		pipeline.WithStore(rt.store),
		pipeline.WithSession(*session),
		pipeline.WithLogger(logger),
		pipeline.WithCollector(rt.collector),
	)
	runner.State().SetValue("input", *text)

	fmt.Printf("running pipeline %q, session %s\n", demoPipeline, runner.Session())

	if err := runExtractPipeline(ctx, runner, rt); err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "resume with: sigflow resume --session %s\n", runner.Session())
		os.Exit(1)
	}

	printPipelineResult(runner)
}

// runResume 从检查点恢复演示流水线，已完成的步骤直接跳过
func runResume(args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	session := fs.String("session", "", "Pipeline session ID to resume (required)")
	fs.Parse(args)

	if *session == "" {
		fmt.Fprintln(os.Stderr, "resume: --session is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger, _ := initLogger(cfg.Log)
	defer logger.Sync()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner, err := pipeline.Resume(ctx, demoPipeline, *session, rt.Conversation(""), rt.store,
		pipeline.WithLogger(logger),
		pipeline.WithCollector(rt.collector),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resume: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("resuming pipeline %q, session %s (%d steps done)\n",
		demoPipeline, runner.Session(), runner.StepCount())

	if err := runExtractPipeline(ctx, runner, rt); err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		os.Exit(1)
	}

	printPipelineResult(runner)
}

// =============================================================================
// 🔬 演示流水线定义
// =============================================================================

// extractSignature 定义抽取步骤的输出模式
func extractSignature() *signature.Signature {
	return signature.New("Extract a structured summary of the given text.").
		Input("text", signature.String(), "the text to analyze").
		Output("summary", signature.String(), "one-paragraph summary").
		Output("sentiment", signature.Enum("positive", "negative", "neutral", "mixed"), "overall sentiment").
		Output("topics", signature.Array(signature.String()), "main topics, most important first").
		MustBuild()
}

// headlineSignature 定义标题步骤的输出模式
func headlineSignature() *signature.Signature {
	return signature.New("Write a short headline for the summarized text.").
		Input("summary", signature.String(), "the summary to condense").
		Output("headline", signature.String(), "a headline of at most ten words").
		MustBuild()
}

// runExtractPipeline 执行演示流水线的两个步骤。
// 每个步骤先查 Completed，恢复运行时不重复执行。
func runExtractPipeline(ctx context.Context, runner *pipeline.Runner, rt *runtime) error {
	input, _ := runner.State().Value("input")
	text, _ := input.(string)
	if text == "" {
		return fmt.Errorf("pipeline state has no input text")
	}

	if !runner.Completed("extract") {
		extractor := predict.New(extractSignature(), rt.PredictOptions()...)
		_, err := runner.Step(ctx, "extract", func(ctx context.Context, pctx *pipeline.Context) (any, error) {
			pred, err := extractor.Execute(ctx, pctx, map[string]any{"text": text})
			if err != nil {
				return nil, err
			}
			runner.State().SetValue("extract", pred.Data)
			return pred.Data, nil
		}, pipeline.RetryOnParseError(true))
		if err != nil {
			return err
		}
	}

	if !runner.Completed("headline") {
		extracted, _ := runner.State().Value("extract")
		data, _ := extracted.(map[string]any)
		summary, _ := data["summary"].(string)
		if summary == "" {
			return fmt.Errorf("extract step left no summary in state")
		}

		headliner := predict.New(headlineSignature(), rt.PredictOptions()...)
		_, err := runner.Step(ctx, "headline", func(ctx context.Context, pctx *pipeline.Context) (any, error) {
			pred, err := headliner.Execute(ctx, pctx, map[string]any{"summary": summary})
			if err != nil {
				return nil, err
			}
			runner.State().SetValue("headline", pred.Data)
			return pred.Data, nil
		}, pipeline.RetryOnParseError(true))
		if err != nil {
			return err
		}
	}

	return runner.Finish(ctx)
}

// printPipelineResult 将流水线结果值输出为 JSON
func printPipelineResult(runner *pipeline.Runner) {
	result := map[string]any{
		"pipeline": runner.Name(),
		"session":  runner.Session(),
		"phase":    runner.State().Phase,
		"values":   runner.State().Values,
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render result: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

// =============================================================================
// 📤 export-session 命令
// =============================================================================

// runExportSession 导出后端会话的完整消息记录
func runExportSession(args []string) {
	fs := flag.NewFlagSet("export-session", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	session := fs.String("session", "", "Backend session ID to export (required)")
	fs.Parse(args)

	if *session == "" {
		fmt.Fprintln(os.Stderr, "export-session: --session is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger, _ := initLogger(cfg.Log)
	defer logger.Sync()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rt.Close()

	exporter, ok := rt.backend.(backend.SessionExporter)
	if !ok {
		fmt.Fprintf(os.Stderr, "backend %q does not support session export\n", rt.backend.Name())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	messages, err := exporter.ExportSession(ctx, *session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to export session: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render messages: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// =============================================================================
// 🔧 运行时装配
// =============================================================================

// runtime 把配置装配成后端、检查点存储和指标收集器，CLI 子命令共用
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	backend   backend.Backend
	store     checkpoint.Store
}

func newRuntime(cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		rt.collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	b, err := backend.New(backendConfig(cfg), logger, rt.collector)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend: %w", err)
	}
	rt.backend = b

	store, err := checkpoint.New(checkpointConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build checkpoint store: %w", err)
	}
	rt.store = store

	return rt, nil
}

// Conversation 按配置打开一个后端会话，session 为空时由后端分配
func (rt *runtime) Conversation(session string) *backend.Conversation {
	opts := []backend.ConversationOption{
		backend.WithTimeout(rt.cfg.Backend.Timeout),
	}
	if rt.cfg.Backend.Agent != "" {
		opts = append(opts, backend.WithAgent(rt.cfg.Backend.Agent))
	}
	if rt.cfg.Backend.Model != "" {
		if ref, err := backend.ParseModelRef(rt.cfg.Backend.Model); err == nil {
			opts = append(opts, backend.WithModel(ref))
		} else {
			rt.logger.Warn("ignoring invalid backend model", zap.String("model", rt.cfg.Backend.Model), zap.Error(err))
		}
	}
	if rt.cfg.Backend.Workdir != "" {
		opts = append(opts, backend.WithWorkdir(rt.cfg.Backend.Workdir))
	}
	if session != "" {
		opts = append(opts, backend.WithSession(session))
	}
	return backend.NewConversation(rt.backend, opts...)
}

// PredictOptions 按配置组装修正循环选项
func (rt *runtime) PredictOptions() []predict.Option {
	opts := []predict.Option{
		predict.WithMaxRounds(rt.cfg.Correction.MaxRounds),
		predict.WithMaxFields(rt.cfg.Correction.MaxFields),
		predict.WithLogger(rt.logger),
		predict.WithCollector(rt.collector),
	}
	if rt.cfg.Correction.Strategy == "jq" {
		opts = append(opts, predict.WithApplier(patch.NewJQ(rt.cfg.JQ.Binary, rt.cfg.JQ.Timeout, rt.logger)))
	}
	if rt.cfg.Backend.CorrectionModel != "" {
		if ref, err := backend.ParseModelRef(rt.cfg.Backend.CorrectionModel); err == nil {
			opts = append(opts, predict.WithCorrectionModel(ref))
		} else {
			rt.logger.Warn("ignoring invalid correction model",
				zap.String("model", rt.cfg.Backend.CorrectionModel), zap.Error(err))
		}
	}
	return opts
}

func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("failed to close checkpoint store", zap.Error(err))
		}
	}
}

// backendConfig 把应用配置桥接为 backend.Config
func backendConfig(cfg *config.Config) backend.Config {
	return backend.Config{
		Kind:       cfg.Backend.Kind,
		BaseURL:    cfg.Backend.BaseURL,
		Bin:        cfg.Backend.Bin,
		TimeoutSec: int(cfg.Backend.Timeout.Seconds()),
		RPS:        cfg.Backend.Rate.RPS,
		Burst:      cfg.Backend.Rate.Burst,
	}
}

// checkpointConfig 把应用配置桥接为 checkpoint.Config
func checkpointConfig(cfg *config.Config) checkpoint.Config {
	return checkpoint.Config{
		Type: checkpoint.StoreType(cfg.Checkpoint.Type),
		Dir:  cfg.Checkpoint.Dir,
		Redis: checkpoint.RedisConfig{
			Addr:     cfg.Checkpoint.Redis.Addr,
			Password: cfg.Checkpoint.Redis.Password,
			DB:       cfg.Checkpoint.Redis.DB,
			TTL:      cfg.Checkpoint.Redis.TTL,
		},
		Database: checkpoint.DatabaseConfig{
			Driver:   cfg.Checkpoint.Database.Driver,
			Host:     cfg.Checkpoint.Database.Host,
			Port:     cfg.Checkpoint.Database.Port,
			User:     cfg.Checkpoint.Database.User,
			Password: cfg.Checkpoint.Database.Password,
			Name:     cfg.Checkpoint.Database.Name,
			SSLMode:  cfg.Checkpoint.Database.SSLMode,
		},
	}
}
