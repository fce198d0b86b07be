package vault

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/checksum"
	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/metrics"
	"github.com/starford/memos/internal/models"
)

// Source is the read side of the content store used for reconciliation.
type Source interface {
	GetMemo(ctx context.Context, id int64) (*models.Memo, error)
	Checksums(ctx context.Context) (map[int64]string, error)
}

// Importer saves edited file content back as memo content.
type Importer interface {
	SaveContent(ctx context.Context, id int64, content, ifMatch string) (*models.Memo, error)
}

// Mirror keeps the memos directory in step with the store. The store is
// the source of truth: removing a file never deletes a memo.
type Mirror struct {
	fs       *FS
	src      Source
	importer Importer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewMirror creates a Mirror. m may be nil.
func NewMirror(fs *FS, src Source, importer Importer, logger *slog.Logger, m *metrics.Metrics) *Mirror {
	return &Mirror{fs: fs, src: src, importer: importer, logger: logger, metrics: m}
}

// HandleEvent writes or removes the file of a changed memo. It is meant
// to be registered with memoservice.Service.OnChange.
func (m *Mirror) HandleEvent(ev memoservice.Event) {
	var err error
	switch ev.Kind {
	case memoservice.EventCreated, memoservice.EventUpdated, memoservice.EventRestored:
		if ev.Memo == nil || ev.Memo.RowStatus != models.Normal {
			return
		}
		err = m.fs.Write(ev.ID, []byte(ev.Memo.Content))
	case memoservice.EventArchived, memoservice.EventDeleted:
		err = m.fs.Delete(ev.ID)
	}
	if err != nil {
		m.logger.Warn("vault: mirror failed",
			slog.Int64("id", ev.ID),
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()))
	}
}

// Sync reconciles the memos directory with the store:
//   - normal memos without a file are exported
//   - files of archived or deleted memos are removed
//   - a file that differs from its memo is imported when it is newer,
//     and overwritten otherwise
func (m *Mirror) Sync(ctx context.Context) error {
	sums, err := m.src.Checksums(ctx)
	if err != nil {
		return err
	}
	files, err := m.fs.List()
	if err != nil {
		return err
	}
	onDisk := make(map[int64]FileMeta, len(files))
	for _, f := range files {
		onDisk[f.ID] = f
		if _, ok := sums[f.ID]; !ok {
			m.logger.Warn("vault: file for unknown memo", slog.String("path", f.Path))
		}
	}

	for id := range sums {
		f, exists := onDisk[id]
		memo, err := m.src.GetMemo(ctx, id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return err
		}
		switch {
		case memo.RowStatus != models.Normal:
			if exists {
				err = m.fs.Delete(id)
			}
		case exists && f.Checksum == memo.Checksum:
		case exists && f.ModTime.After(memo.UpdatedTs):
			m.Import(ctx, id)
		default:
			err = m.fs.Write(id, []byte(memo.Content))
		}
		if err != nil {
			m.logger.Warn("sync: mirror failed", slog.Int64("id", id), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Import saves the file of memo id as its content when it differs from
// the stored checksum. Files of unknown or archived memos are skipped.
func (m *Mirror) Import(ctx context.Context, id int64) {
	result := m.importFile(ctx, id)
	m.metrics.RecordVaultImport(result)
}

func (m *Mirror) importFile(ctx context.Context, id int64) string {
	data, err := m.fs.Read(id)
	if err != nil {
		m.logger.Warn("vault: read failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return "failed"
	}
	memo, err := m.src.GetMemo(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			m.logger.Warn("vault: file for unknown memo", slog.Int64("id", id))
			return "skipped"
		}
		m.logger.Warn("vault: load memo failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return "failed"
	}
	if memo.RowStatus != models.Normal || checksum.Sum(data) == memo.Checksum {
		return "skipped"
	}

	if _, err := m.importer.SaveContent(ctx, id, string(data), memo.Checksum); err != nil {
		if errors.Is(err, apperr.ErrEmptyContent) {
			m.logger.Warn("vault: empty file ignored", slog.Int64("id", id))
			return "skipped"
		}
		m.logger.Warn("vault: import failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return "failed"
	}
	m.logger.Debug("vault: imported", slog.Int64("id", id))
	return "imported"
}
