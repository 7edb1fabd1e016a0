package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pec-cloud/server/internal/config"
	"github.com/pec-cloud/server/internal/database"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/internal/storage"
	"github.com/pec-cloud/server/pkg/logger"
	"github.com/pec-cloud/server/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	blobs      *memBlobStore
	staging    *storage.Staging
	stagingDir string
	sessions   *services.SessionService
	audit      *services.AuditService
}

var testSetupOnce sync.Once

// memBlobStore stands in for the object store.
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

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureSessionSigning("test-secret")
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

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	blobs := newMemBlobStore()
	stagingDir := t.TempDir()
	staging, err := storage.NewStaging(config.StagingConfig{
		TempDir:       stagingDir,
		TTL:           30 * time.Second,
		SweepInterval: time.Hour,
	}, blobs)
	if err != nil {
		t.Fatalf("failed creating staging area: %v", err)
	}

	sessionService := services.NewSessionService(db, time.Hour)
	filesystemService := services.NewFilesystemService(db, blobs, staging)
	accessService := services.NewAccessService(db)
	linkService := services.NewLinkService(db, filesystemService)
	shareService := services.NewShareService(db, filesystemService)
	auditService := services.NewAuditService(db)
	mailer := services.NewLogMailer("noreply@test.local")

	authHandler := NewAuthHandler(db, sessionService, mailer, auditService)
	userHandler := NewUserHandler(db, auditService)
	filesystemHandler := NewFilesystemHandler(filesystemService, accessService, linkService, staging, blobs, auditService)
	linkHandler := NewLinkHandler(linkService, filesystemService, accessService, blobs, auditService)
	shareHandler := NewShareHandler(shareService, filesystemService, accessService, auditService)
	logHandler := NewLogHandler(auditService)

	authMiddleware := middleware.NewAuthMiddleware(sessionService)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/validate", authHandler.Validate)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Get("/users/:username/public-key", authMiddleware.RequireAuth, userHandler.GetPublicKey)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", userHandler.ListUsers)
	userRoutes.Post("/:username/suspend", userHandler.Suspend)
	userRoutes.Delete("/:username", userHandler.Delete)

	fsRoutes := api.Group("/filesystem", authMiddleware.RequireAuth)
	fsRoutes.Get("/", filesystemHandler.GetTree)
	fsRoutes.Post("/upload", filesystemHandler.Upload)
	fsRoutes.Post("/file", filesystemHandler.CreateFile)
	fsRoutes.Post("/folder", filesystemHandler.CreateFolder)
	fsRoutes.Get("/:nodeId", filesystemHandler.GetSubtree)
	fsRoutes.Get("/:nodeId/path", filesystemHandler.GetPath)
	fsRoutes.Get("/:nodeId/links", filesystemHandler.GetLinks)
	fsRoutes.Get("/:nodeId/shares", shareHandler.SharesByNode)
	fsRoutes.Get("/:nodeId/download", filesystemHandler.Download)
	fsRoutes.Patch("/:nodeId/parent", filesystemHandler.Move)
	fsRoutes.Patch("/:nodeId/metadata", filesystemHandler.UpdateMetadata)
	fsRoutes.Patch("/:nodeId/ref", filesystemHandler.UpdateRef)
	fsRoutes.Delete("/:nodeId", filesystemHandler.Delete)

	linkRoutes := api.Group("/links")
	linkRoutes.Post("/", authMiddleware.RequireAuth, linkHandler.CreateLink)
	linkRoutes.Get("/:shareId", linkHandler.ResolveLink)
	linkRoutes.Get("/:shareId/download", linkHandler.DownloadByLink)

	shareRoutes := api.Group("/shares", authMiddleware.RequireAuth)
	shareRoutes.Post("/", shareHandler.CreateShare)
	shareRoutes.Get("/", shareHandler.SharesReceived)

	logRoutes := api.Group("/logs", authMiddleware.RequireAuth, middleware.AdminOnly)
	logRoutes.Get("/nodes/:nodeId", logHandler.NodeLogsByNode)
	logRoutes.Get("/nodes/activity/:activity", logHandler.NodeLogsByActivity)
	logRoutes.Get("/nodes/performer/:username", logHandler.NodeLogsByPerformer)
	logRoutes.Get("/users/:username", logHandler.UserLogsBySubject)
	logRoutes.Get("/users/activity/:activity", logHandler.UserLogsByActivity)
	logRoutes.Get("/users/performer/:username", logHandler.UserLogsByPerformer)

	return &testEnv{
		app:        app,
		db:         db,
		blobs:      blobs,
		staging:    staging,
		stagingDir: stagingDir,
		sessions:   sessionService,
		audit:      auditService,
	}
}

func createTestUser(t *testing.T, env *testEnv, username string, level models.AccessLevel) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashAuthenticationKey("auth-key-" + username)
	if err != nil {
		t.Fatalf("failed hashing authentication key: %v", err)
	}

	user := &models.User{
		Username:                username,
		Email:                   username + "@pec.local",
		HashedAuthenticationKey: hash,
		EncryptedMasterKey:      "master-" + username,
		RSAPublicKey:            "pub-" + username,
		AccessLevel:             level,
		UserStatus:              models.UserStatusOK,
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, _, err := env.sessions.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("failed issuing session: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func performUpload(t *testing.T, app *fiber.App, token string, content []byte) string {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "payload.bin")
	if err != nil {
		t.Fatalf("failed creating form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed writing form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	headers := authHeaders(token)
	headers["Content-Type"] = writer.FormDataContentType()

	resp := performRequest(t, app, http.MethodPost, "/api/filesystem/upload", body, headers)
	assertStatus(t, resp, fiber.StatusCreated)

	payload := decodeJSONMap(t, resp)
	data, _ := payload["data"].(map[string]any)
	ref, _ := data["ref"].(string)
	if ref == "" {
		t.Fatalf("expected a staged ref, got %+v", payload)
	}
	return ref
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeStatus(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if got, _ := body["status"].(string); got != expected {
		t.Fatalf("expected status %q, got %q (body=%+v)", expected, got, body)
	}
}

func dataField(t *testing.T, body map[string]any, key string) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	value, ok := data[key].(map[string]any)
	if !ok {
		t.Fatalf("expected data.%s object, got %+v", key, data)
	}
	return value
}

