package ml

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay coalesces the burst of write events a trainer emits while
// replacing the four artifact files.
const reloadDelay = 2 * time.Second

// WatchArtifacts reloads the registry whenever a pipeline or metrics artifact
// in its directory is rewritten. It blocks until ctx is canceled. The watcher
// is opt-in: without it, a missing model stays disabled for the process
// lifetime.
func WatchArtifacts(ctx context.Context, registry *Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(registry.dir); err != nil {
		return err
	}
	logger.Info("watching model artifacts", zap.String("dir", registry.dir))

	artifacts := map[string]bool{
		ClassificationPipelineFile: true,
		RegressionPipelineFile:     true,
		ClassificationMetricsFile:  true,
		RegressionMetricsFile:      true,
	}

	var pending *time.Timer
	var pendingC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !artifacts[filepath.Base(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(reloadDelay)
				pendingC = pending.C
			} else {
				pending.Reset(reloadDelay)
			}
		case <-pendingC:
			pending = nil
			pendingC = nil
			logger.Info("artifacts changed, reloading models")
			registry.Load()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}
