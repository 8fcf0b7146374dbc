package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/BaSui01/sigflow/checkpoint"
)

// =============================================================================
// 💾 checkpoints 命令
// =============================================================================

// runCheckpoints 分发 checkpoints 子命令
func runCheckpoints(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sigflow checkpoints <list|show|rm> [options]")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		runCheckpointsList(args[1:])
	case "show":
		runCheckpointsShow(args[1:])
	case "rm":
		runCheckpointsRemove(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown checkpoints subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: sigflow checkpoints <list|show|rm> [options]")
		os.Exit(1)
	}
}

// openStore 根据配置打开检查点存储，checkpoints 子命令共用
func openStore(configPath string) checkpoint.Store {
	cfg := mustLoadConfig(configPath)
	logger, _ := initLogger(cfg.Log)

	store, err := checkpoint.New(checkpointConfig(cfg), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open checkpoint store: %v\n", err)
		os.Exit(1)
	}
	return store
}

// runCheckpointsList 列出检查点，可按流水线过滤
func runCheckpointsList(args []string) {
	fs := flag.NewFlagSet("checkpoints list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	pipeline := fs.String("pipeline", "", "Filter by pipeline name")
	fs.Parse(args)

	store := openStore(*configPath)
	defer store.Close()

	refs, err := store.List(context.Background(), *pipeline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list checkpoints: %v\n", err)
		os.Exit(1)
	}

	if len(refs) == 0 {
		fmt.Println("no checkpoints found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PIPELINE\tSESSION\tUPDATED")
	for _, ref := range refs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ref.Pipeline, ref.Session, ref.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

// runCheckpointsShow 输出单个检查点的完整状态
func runCheckpointsShow(args []string) {
	fs := flag.NewFlagSet("checkpoints show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: sigflow checkpoints show <pipeline> <session>")
		os.Exit(1)
	}
	pipeline, session := fs.Arg(0), fs.Arg(1)

	store := openStore(*configPath)
	defer store.Close()

	var state json.RawMessage
	err := store.Load(context.Background(), pipeline, session, &state)
	if errors.Is(err, checkpoint.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "checkpoint %s/%s not found\n", pipeline, session)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load checkpoint: %v\n", err)
		os.Exit(1)
	}

	var pretty map[string]any
	if err := json.Unmarshal(state, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(string(state))
}

// runCheckpointsRemove 删除检查点
func runCheckpointsRemove(args []string) {
	fs := flag.NewFlagSet("checkpoints rm", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: sigflow checkpoints rm <pipeline> <session>")
		os.Exit(1)
	}
	pipeline, session := fs.Arg(0), fs.Arg(1)

	store := openStore(*configPath)
	defer store.Close()

	err := store.Delete(context.Background(), pipeline, session)
	if errors.Is(err, checkpoint.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "checkpoint %s/%s not found\n", pipeline, session)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to delete checkpoint: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("deleted checkpoint %s/%s\n", pipeline, session)
}
