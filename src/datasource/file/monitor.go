// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控数据目录，数据文件写入完成后回调
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	paths    map[string]struct{} // 只关心这些文件，为空时按扩展名过滤
	lastFile string
	lastMod  time.Time
	timer    *time.Timer
	mu       sync.Mutex
}

func NewFileMonitor(dir string, debounce time.Duration, paths ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		debounce: debounce,
		paths:    make(map[string]struct{}, len(paths)),
	}
	for _, p := range paths {
		m.paths[filepath.Clean(p)] = struct{}{}
	}
	return m, nil
}

// relevant 判断事件对应的文件是否需要处理
func (m *FileMonitor) relevant(name string) bool {
	if len(m.paths) > 0 {
		_, ok := m.paths[filepath.Clean(name)]
		return ok
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return !strings.HasPrefix(filepath.Base(name), "~$")
	}
	return false
}

// Watch 阻塞直到ctx取消或watcher出错。
// 同一批写入在debounce时间内只回调一次。
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !m.relevant(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if !info.ModTime().Before(m.lastMod) {
				m.lastMod = info.ModTime()
				m.lastFile = event.Name
				m.schedule(handler)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// schedule 重置计时器，调用方持有锁
func (m *FileMonitor) schedule(handler func(string)) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		name := m.lastFile
		m.mu.Unlock()
		handler(name)
	})
}

func (m *FileMonitor) stopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
}

// LastFile 最近一次触发回调的文件
func (m *FileMonitor) LastFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFile
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
