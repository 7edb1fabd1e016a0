package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/models"
)

func TestPublicKeyLookup(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env, "alice", models.AccessLevelUser)
	createTestUser(t, env, "bob", models.AccessLevelUser)

	resp := performRequest(t, env.app, http.MethodGet, "/api/users/bob/public-key", nil, authHeaders(aliceToken))
	assertStatus(t, resp, fiber.StatusOK)
	body := decodeJSONMap(t, resp)
	data, _ := body["data"].(map[string]any)
	if data["rsaPublicKey"] != "pub-bob" {
		t.Fatalf("expected bob's public key, got %+v", data)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/users/nobody/public-key", nil, authHeaders(aliceToken))
	assertStatus(t, resp, fiber.StatusNotFound)
	assertEnvelopeStatus(t, decodeJSONMap(t, resp), "ERROR_USER_NOT_FOUND")
}

func TestUserAdminRoutesRequireAdministrator(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env, "alice", models.AccessLevelUser)

	resp := performRequest(t, env.app, http.MethodGet, "/api/users/", nil, authHeaders(aliceToken))
	assertStatus(t, resp, fiber.StatusForbidden)
	assertEnvelopeStatus(t, decodeJSONMap(t, resp), "ERROR_INVALID_ACCESS_LEVEL")
}

func TestSuspendKillsSessionsAndBlocksLogin(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env, "root", models.AccessLevelAdministrator)
	_, aliceToken := createTestUser(t, env, "alice", models.AccessLevelUser)

	resp := performRequest(t, env.app, http.MethodPost, "/api/users/alice/suspend", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	decodeJSONMap(t, resp)

	// Existing sessions are dead.
	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(aliceToken))
	assertStatus(t, resp, fiber.StatusUnauthorized)
	decodeJSONMap(t, resp)

	// And logging in again is refused.
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username":          "alice",
		"authenticationKey": "auth-key-alice",
	}, nil)
	assertStatus(t, resp, fiber.StatusForbidden)
	assertEnvelopeStatus(t, decodeJSONMap(t, resp), "ERROR_INVALID_USER_STATUS")

	// Suspending twice is rejected.
	resp = performRequest(t, env.app, http.MethodPost, "/api/users/alice/suspend", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusForbidden)
	assertEnvelopeStatus(t, decodeJSONMap(t, resp), "ERROR_INVALID_USER_STATUS")
}

func TestDeleteUserOrphansNodesAndWipesKeys(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env, "root", models.AccessLevelAdministrator)
	_, aliceToken := createTestUser(t, env, "alice", models.AccessLevelUser)

	nodeID := createFolderViaAPI(t, env, aliceToken, nil)

	resp := performRequest(t, env.app, http.MethodDelete, "/api/users/alice", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	decodeJSONMap(t, resp)

	var user models.User
	if err := env.db.First(&user, "username = ?", "alice").Error; err != nil {
		t.Fatalf("expected user row kept, got %v", err)
	}
	if user.UserStatus != models.UserStatusDeleted {
		t.Fatalf("expected DELETED status, got %s", user.UserStatus)
	}
	if user.HashedAuthenticationKey != "" || user.EncryptedMasterKey != "" {
		t.Fatal("expected key material wiped")
	}

	var node models.Node
	if err := env.db.First(&node, "id = ?", nodeID).Error; err != nil {
		t.Fatalf("expected node kept, got %v", err)
	}
	if node.OwnerID != nil {
		t.Fatalf("expected node orphaned, got owner %v", *node.OwnerID)
	}

	env.audit.Flush()
	var logs []models.UserLog
	if err := env.db.Where("activity_type = ?", models.ActivityUserDeletion).Find(&logs).Error; err != nil {
		t.Fatalf("failed loading logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 deletion entry, got %d", len(logs))
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env, "root", models.AccessLevelAdministrator)

	resp := performRequest(t, env.app, http.MethodDelete, "/api/users/root", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusForbidden)
	decodeJSONMap(t, resp)
}
