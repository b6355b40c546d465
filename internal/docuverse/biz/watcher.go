package biz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
)

// DefaultWatchDebounce 同一会话的文件事件合并窗口。
const DefaultWatchDebounce = 2 * time.Second

// BuildTrigger 请求重建某个会话的索引。
type BuildTrigger func(ctx context.Context, sessionID string)

// UploadWatcher 监听上传目录，把 uploads/<session>/ 下的变化转换为该会话的索引构建请求。
type UploadWatcher struct {
	root     string
	debounce time.Duration
	trigger  BuildTrigger
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewUploadWatcher 创建监听器并注册根目录及已有的会话目录。
func NewUploadWatcher(root string, debounce time.Duration, trigger BuildTrigger) (*UploadWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create upload watcher: %w", err)
	}

	w := &UploadWatcher{
		root:     filepath.Clean(root),
		debounce: debounce,
		trigger:  trigger,
		watcher:  fw,
		timers:   make(map[string]*time.Timer),
	}
	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(w.root, e.Name()))
		}
	}
	return w, nil
}

func (w *UploadWatcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		logger.Warnw("failed to watch upload directory", "dir", dir, "error", err.Error())
	}
}

// sessionOf 返回事件路径所属的会话；路径就是会话目录本身时 isDir 为 true。
func (w *UploadWatcher) sessionOf(path string) (sessionID string, isDir bool, ok bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return parts[0], len(parts) == 1, true
}

// Run 处理事件直到 ctx 结束，然后停止所有计时器并关闭监听器。
func (w *UploadWatcher) Run(ctx context.Context) {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("upload watcher error", "error", err.Error())
		}
	}
}

func (w *UploadWatcher) handle(ctx context.Context, event fsnotify.Event) {
	sessionID, isDir, ok := w.sessionOf(event.Name)
	if !ok {
		return
	}

	if isDir {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.add(event.Name)
			}
		}
		return
	}

	if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
		w.schedule(ctx, sessionID)
	}
}

func (w *UploadWatcher) schedule(ctx context.Context, sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[sessionID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[sessionID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, sessionID)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		logger.Debugw("upload directory changed", "session_id", sessionID)
		w.trigger(ctx, sessionID)
	})
}

func (w *UploadWatcher) stop() {
	w.mu.Lock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		logger.Warnw("failed to close upload watcher", "error", err.Error())
	}
}
