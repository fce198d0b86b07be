package vault

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the memos directory and imports
// edited memo files until ctx is cancelled.
//
// Removed or renamed files schedule a debounced Sync, which restores the
// files of memos that are still normal.
func (m *Mirror) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(m.fs.Dir()); err != nil {
		return err
	}

	m.logger.Info("watcher: started", slog.String("dir", m.fs.Dir()))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			m.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := m.Sync(ctx); err != nil {
				m.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, ok := ParseFileName(ev.Name)
			if !ok {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				m.Import(ctx, id)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				m.logger.Debug("watcher: file removed", slog.String("path", ev.Name))
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
