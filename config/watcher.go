// 配置文件变更监听与自动重载。
//
// 基于轮询检测文件修改，防抖后重新加载配置；
// 新配置无效时保留旧配置并记录告警。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadFunc 在配置成功重载后被调用
type ReloadFunc func(old, updated *Config)

// Watcher 监听配置文件并在变更时重新加载。
// 重载失败（读取、解析或校验错误）不会影响当前配置。
type Watcher struct {
	mu sync.Mutex

	loader   *Loader
	current  *Config
	onReload []ReloadFunc

	pollInterval time.Duration
	debounce     time.Duration

	running bool
	stop    chan struct{}
	lastMod time.Time

	logger *zap.Logger
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the config file is checked
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithDebounceDelay sets the settle time after a detected change
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher 创建配置监听器。loader 必须带有配置文件路径，
// current 是当前生效的配置。
func NewWatcher(loader *Loader, current *Config, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || loader.configPath == "" {
		return nil, fmt.Errorf("watcher needs a loader with a config path")
	}

	w := &Watcher{
		loader:       loader,
		current:      current,
		pollInterval: time.Second,
		debounce:     100 * time.Millisecond,
		stop:         make(chan struct{}),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config-watcher"))

	if info, err := os.Stat(loader.configPath); err == nil {
		w.lastMod = info.ModTime()
	} else if os.IsNotExist(err) {
		w.logger.Warn("config file does not exist, will watch for creation",
			zap.String("path", loader.configPath))
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", loader.configPath, err)
	}

	return w, nil
}

// OnReload 注册重载回调，回调在监听 goroutine 中执行
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Current 返回最近一次成功加载的配置
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// IsRunning 返回监听器是否在运行
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start 启动监听，重复调用返回错误
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	go w.pollLoop(ctx)

	w.logger.Info("config watcher started",
		zap.String("path", w.loader.configPath),
		zap.Duration("poll_interval", w.pollInterval))
	return nil
}

// Stop 停止监听，可安全地重复调用
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stop)
	w.running = false
	w.logger.Info("config watcher stopped")
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if w.changed() {
				// 等待写入稳定再加载，编辑器保存往往是多次写
				if w.debounce > 0 {
					select {
					case <-ctx.Done():
						return
					case <-w.stop:
						return
					case <-time.After(w.debounce):
					}
				}
				w.changed() // 吸收防抖窗口内的后续修改
				w.reload()
			}
		}
	}
}

// changed 检查文件修改时间，有变化时更新记录并返回 true
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.loader.configPath)
	if err != nil {
		if os.IsNotExist(err) && !w.lastMod.IsZero() {
			w.logger.Warn("config file removed, keeping current config",
				zap.String("path", w.loader.configPath))
			w.lastMod = time.Time{}
		}
		return false
	}
	if info.ModTime().After(w.lastMod) || w.lastMod.IsZero() {
		w.lastMod = info.ModTime()
		return true
	}
	return false
}

// reload 重新加载并校验配置，成功后替换当前配置并触发回调
func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("reloaded config invalid, keeping previous config", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	callbacks := make([]ReloadFunc, len(w.onReload))
	copy(callbacks, w.onReload)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.loader.configPath))
	for _, fn := range callbacks {
		fn(old, cfg)
	}
}
