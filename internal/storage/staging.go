package storage

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/config"
	"github.com/pec-cloud/server/pkg/logger"
	"github.com/pec-cloud/server/pkg/utils"
)

// Staging holds freshly uploaded blobs on local disk until a file
// node claims them. A background sweep removes entries whose TTL has
// passed; Promote moves a claimed blob into the permanent BlobStore.
type Staging struct {
	cfg   config.StagingConfig
	blobs BlobStore

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewStaging(cfg config.StagingConfig, blobs BlobStore) (*Staging, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, err
	}
	return &Staging{cfg: cfg, blobs: blobs}, nil
}

// Stage writes the uploaded file into the temporary area under a
// fresh random ref and returns that ref.
func (s *Staging) Stage(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil || fileHeader.Size == 0 {
		return "", apperrors.New(apperrors.CodeInvalidFile, "no file sent")
	}

	ref, err := utils.RandomHex(16)
	if err != nil {
		return "", err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.cfg.TempDir, ref))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}

	logger.Info("upload_staged", map[string]interface{}{
		"ref":  ref,
		"size": fileHeader.Size,
	})
	return ref, nil
}

// Promote moves a staged blob into permanent storage. The staged copy
// is removed only after the permanent write succeeded, so a crash in
// between leaves at worst a staged file for the sweep to collect.
func (s *Staging) Promote(ctx context.Context, ref string) error {
	path := filepath.Join(s.cfg.TempDir, ref)

	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.New(apperrors.CodeFileExpired, "expired or non existing file")
		}
		return err
	}

	info, err := src.Stat()
	if err != nil {
		src.Close()
		return err
	}

	if err := s.blobs.Put(ctx, ref, src, info.Size()); err != nil {
		src.Close()
		return err
	}
	src.Close()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("staging_cleanup_failed", map[string]interface{}{
			"ref":   ref,
			"error": err.Error(),
		})
	}
	return nil
}

// Exists reports whether a staged blob is still waiting under ref.
func (s *Staging) Exists(ref string) bool {
	_, err := os.Stat(filepath.Join(s.cfg.TempDir, ref))
	return err == nil
}

// PurgeAll empties the whole staging area. Invoked once at startup to
// drop uploads orphaned by a previous run.
func (s *Staging) PurgeAll() error {
	entries, err := os.ReadDir(s.cfg.TempDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.TempDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			logger.Warn("staging_purge_failed", map[string]interface{}{
				"name":  entry.Name(),
				"error": err.Error(),
			})
		}
	}
	return nil
}

// StartSweep launches the background TTL sweep. Stop tears it down.
func (s *Staging) StartSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Staging) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Staging) sweep() {
	entries, err := os.ReadDir(s.cfg.TempDir)
	if err != nil {
		logger.Error("staging_sweep_failed", err, nil)
		return
	}

	cutoff := time.Now().Add(-s.cfg.TTL)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// A concurrent Promote may have taken the file already.
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.cfg.TempDir, entry.Name())
		// Re-check existence right before removal; losing the race to
		// Promote is fine.
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("staging_sweep_remove_failed", map[string]interface{}{
				"name":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}
		logger.Info("staging_expired", map[string]interface{}{
			"ref": entry.Name(),
		})
	}
}
