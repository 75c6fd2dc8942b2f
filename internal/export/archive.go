package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/crypto"
	"github.com/feedback-system/feedback-system/internal/storage"
	"github.com/feedback-system/feedback-system/internal/telemetry"
)

// archiveTimeout bounds one background upload.
const archiveTimeout = 2 * time.Minute

// ErrArchiveMismatch means the stored copy did not read back as the bytes written.
var ErrArchiveMismatch = errors.New("archived copy does not match the export")

// Executor runs background work. *safego.Pool satisfies it.
type Executor interface {
	Submit(name string, fn func()) bool
}

// Archiver copies exports to object storage, best-effort and off the request path.
type Archiver struct {
	store   storage.Storage
	backend string
	prefix  string
	cipher  *crypto.Cipher
	exec    Executor
}

// NewArchiver builds an Archiver over store. When cfg.EncryptionKey is set, archives
// are AES-256-GCM sealed and stored with a ".enc" suffix. exec may be nil, in which
// case uploads run synchronously.
func NewArchiver(store storage.Storage, cfg config.ArchiveConfig, exec Executor) (*Archiver, error) {
	a := &Archiver{store: store, backend: cfg.Backend, prefix: cfg.Prefix, exec: exec}
	if cfg.EncryptionKey != "" {
		key, err := crypto.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("export archive encryption key: %w", err)
		}
		if a.cipher, err = crypto.NewCipher(key); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Key returns the object key for filename exported at t: prefix/yyyy/mm/filename.
func (a *Archiver) Key(filename string, t time.Time) string {
	t = t.UTC()
	key := path.Join(a.prefix, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), filename)
	if a.cipher != nil {
		key += ".enc"
	}
	return key
}

// Archive queues an upload of data. A full queue drops the archive; the export
// itself is never affected.
func (a *Archiver) Archive(filename string, data []byte, at time.Time) {
	key := a.Key(filename, at)
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if _, err := a.Upload(ctx, key, data); err != nil {
			slog.Error("export archive failed", "backend", a.backend, "key", key, "error", err)
		}
	}
	if a.exec == nil {
		task()
		return
	}
	if !a.exec.Submit("export-archive", task) {
		telemetry.ExportArchivesTotal.WithLabelValues(a.backend, "dropped").Inc()
		slog.Warn("export archive dropped, worker queue full", "backend", a.backend, "key", key)
	}
}

// Upload seals data when encryption is configured, writes it to key, then reads the
// object back and compares its SHA-256. A copy that does not match is deleted.
func (a *Archiver) Upload(ctx context.Context, key string, data []byte) (*storage.UploadResult, error) {
	if a.cipher != nil {
		sealed, err := a.cipher.Seal(data)
		if err != nil {
			telemetry.ExportArchivesTotal.WithLabelValues(a.backend, "failure").Inc()
			return nil, fmt.Errorf("failed to encrypt archive: %w", err)
		}
		data = sealed
	}

	res, err := a.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		telemetry.ExportArchivesTotal.WithLabelValues(a.backend, "failure").Inc()
		return nil, err
	}
	if err := a.verify(ctx, key, storage.Digest(data)); err != nil {
		telemetry.ExportArchivesTotal.WithLabelValues(a.backend, "failure").Inc()
		return nil, err
	}
	telemetry.ExportArchivesTotal.WithLabelValues(a.backend, "success").Inc()
	slog.Info("export archived",
		"backend", a.backend,
		"key", res.Path,
		"size", res.Size,
		"sha256", res.Checksum,
		"encrypted", a.cipher != nil,
	)
	return res, nil
}

func (a *Archiver) verify(ctx context.Context, key, want string) error {
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read back archive: %w", err)
	}
	ok, err := storage.MatchesDigest(rc, want)
	rc.Close()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if err := a.store.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete mismatched archive", "backend", a.backend, "key", key, "error", err)
	}
	return fmt.Errorf("%w: %s", ErrArchiveMismatch, key)
}
