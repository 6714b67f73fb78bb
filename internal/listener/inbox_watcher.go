package listener

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const inboxSettle = 500 * time.Millisecond

// inboxWatcher turns writes into the local inbox into early listener cycles.
// Events are debounced so a file still being copied is not read half way.
type inboxWatcher struct {
	watcher *fsnotify.Watcher
	wake    chan struct{}
	done    chan struct{}
	settle  time.Duration
	logger  *zap.Logger
}

func newInboxWatcher(dir string, logger *zap.Logger) (*inboxWatcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return &inboxWatcher{
		watcher: watcher,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		settle:  inboxSettle,
		logger:  logger,
	}, nil
}

func (iw *inboxWatcher) run(ctx context.Context) {
	defer close(iw.done)
	defer iw.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isInboxFile(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(iw.settle)
			} else {
				timer.Reset(iw.settle)
			}
			fire = timer.C
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			iw.logger.Warn("inbox watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			select {
			case iw.wake <- struct{}{}:
			default:
			}
		}
	}
}

func isInboxFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json" || ext == ".ndjson"
}
