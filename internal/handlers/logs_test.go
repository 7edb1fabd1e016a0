package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pec-cloud/server/internal/models"
)

func TestLogRoutesAreAdminOnly(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env, "alice", models.AccessLevelUser)

	resp := performRequest(t, env.app, http.MethodGet, "/api/logs/users/alice", nil, authHeaders(aliceToken))
	assertStatus(t, resp, fiber.StatusForbidden)
	assertEnvelopeStatus(t, decodeJSONMap(t, resp), "ERROR_INVALID_ACCESS_LEVEL")
}

func TestNodeLogQueries(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env, "root", models.AccessLevelAdministrator)
	_, aliceToken := createTestUser(t, env, "alice", models.AccessLevelUser)

	rootID := createFolderViaAPI(t, env, aliceToken, nil)
	createFolderViaAPI(t, env, aliceToken, &rootID)
	env.audit.Flush()

	resp := performRequest(t, env.app, http.MethodGet, fmt.Sprintf("/api/logs/nodes/%d", rootID), nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	body := decodeJSONMap(t, resp)
	data, _ := body["data"].(map[string]any)
	logs, _ := data["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry for the root node, got %d", len(logs))
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/logs/nodes/activity/FOLDER_CREATION", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	body = decodeJSONMap(t, resp)
	data, _ = body["data"].(map[string]any)
	logs, _ = data["logs"].([]any)
	if len(logs) != 2 {
		t.Fatalf("expected 2 folder creation entries, got %d", len(logs))
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/logs/nodes/performer/alice", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	body = decodeJSONMap(t, resp)
	data, _ = body["data"].(map[string]any)
	logs, _ = data["logs"].([]any)
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries performed by alice, got %d", len(logs))
	}
}

func TestUserLogQueries(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env, "root", models.AccessLevelAdministrator)
	createTestUser(t, env, "alice", models.AccessLevelUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"username":          "alice",
		"authenticationKey": "auth-key-alice",
	}, nil)
	assertStatus(t, resp, fiber.StatusOK)
	decodeJSONMap(t, resp)
	env.audit.Flush()

	resp = performRequest(t, env.app, http.MethodGet, "/api/logs/users/activity/USER_LOGIN", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	body := decodeJSONMap(t, resp)
	data, _ := body["data"].(map[string]any)
	logs, _ := data["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("expected 1 login entry, got %d", len(logs))
	}
	entry, _ := logs[0].(map[string]any)
	if entry["subjectUsername"] != "alice" {
		t.Fatalf("expected subject alice, got %+v", entry)
	}
	if entry["sessionID"] == nil || entry["sessionID"] == "" {
		t.Fatalf("expected session correlation, got %+v", entry)
	}
}
