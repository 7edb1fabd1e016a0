package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pec-cloud/server/internal/config"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/storage"
	"github.com/pec-cloud/server/pkg/logger"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Node{},
		&models.Share{},
		&models.Link{},
		&models.UserLog{},
		&models.NodeLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

// memBlobStore keeps permanent blobs in a map so tests can observe
// promotions and removals without a running object store.
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string][]byte{}}
}

func (m *memBlobStore) Put(_ context.Context, ref string, reader io.Reader, _ int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = data
	return nil
}

func (m *memBlobStore) Get(_ context.Context, ref string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ref]
	if !ok {
		return nil, 0, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memBlobStore) Remove(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ref)
	return nil
}

func (m *memBlobStore) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[ref]
	return ok
}

func newTestStaging(t *testing.T, blobs storage.BlobStore) (*storage.Staging, string) {
	t.Helper()

	dir := t.TempDir()
	staging, err := storage.NewStaging(config.StagingConfig{
		TempDir:       dir,
		TTL:           30 * time.Second,
		SweepInterval: time.Hour,
	}, blobs)
	if err != nil {
		t.Fatalf("failed creating staging area: %v", err)
	}
	return staging, dir
}

// stageBlob drops content directly into the staging area under ref,
// the same state a successful upload leaves behind.
func stageBlob(t *testing.T, dir, ref string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ref), content, 0o644); err != nil {
		t.Fatalf("failed staging blob %s: %v", ref, err)
	}
}

func createUser(t *testing.T, db *gorm.DB, username string, level models.AccessLevel) *models.User {
	t.Helper()

	user := &models.User{
		Username:                username,
		Email:                   username + "@pec.local",
		HashedAuthenticationKey: "irrelevant",
		EncryptedMasterKey:      "master-" + username,
		AccessLevel:             level,
		UserStatus:              models.UserStatusOK,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", username, err)
	}
	return user
}

func createFolder(t *testing.T, fs *FilesystemService, owner *models.User, parentID *uint) *models.Node {
	t.Helper()

	node, err := fs.CreateFolder(context.Background(), owner, parentID, EncryptedFields{
		EncryptedMetadata: "meta",
		EncryptedKey:      "key",
		IV:                "iv",
		Tag:               "tag",
	})
	if err != nil {
		t.Fatalf("failed creating folder: %v", err)
	}
	return node
}
