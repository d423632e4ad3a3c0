package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig 热更新参数。
type WatcherConfig struct {
	Enabled  bool          // 是否启用热更新
	Cooldown time.Duration // 冷却时间，避免编辑器多次写入触发连环重载
}

// DefaultWatcherConfig 默认热更新参数。
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Enabled:  true,
		Cooldown: 5 * time.Second,
	}
}

// Watcher 基于 fsnotify 监听配置文件并在变化时回调。
// 回调收到的是已通过 Validate 的完整配置；解析失败的文件会被忽略并保留旧配置。
type Watcher struct {
	cfg      WatcherConfig
	path     string
	fsw      *fsnotify.Watcher
	onUpdate func(AppConfig)
	onError  func(error)

	mu         sync.RWMutex
	lastReload time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher 创建配置监听器。onUpdate 不能为 nil；onError 可以为 nil。
func NewWatcher(path string, cfg WatcherConfig, onUpdate func(AppConfig), onError func(error)) (*Watcher, error) {
	if onUpdate == nil {
		return nil, fmt.Errorf("onUpdate callback is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultWatcherConfig().Cooldown
	}
	return &Watcher{
		cfg:      cfg,
		path:     path,
		fsw:      fsw,
		onUpdate: onUpdate,
		onError:  onError,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听。未启用时立即返回 nil。
func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		close(w.doneChan)
		return nil
	}
	if err := w.fsw.Add(w.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go w.watch(ctx)
	return nil
}

// Stop 停止监听并关闭底层 watcher。
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
	}
	return w.fsw.Close()
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// 编辑器常见保存方式：原地写入，或写临时文件后 rename。
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.handleChange()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("watcher: %w", err))
		}
	}
}

func (w *Watcher) handleChange() {
	w.mu.Lock()
	if time.Since(w.lastReload) < w.cfg.Cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.reportError(fmt.Errorf("reload config: %w", err))
		return
	}
	w.onUpdate(cfg)
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

// LastReloadTime 返回最近一次成功触发重载的时间。
func (w *Watcher) LastReloadTime() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastReload
}
