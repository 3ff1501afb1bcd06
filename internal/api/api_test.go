package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erazemk/manutencao/internal/auth"
	"github.com/erazemk/manutencao/internal/db"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/notify"
	"github.com/erazemk/manutencao/internal/store"
)

const testJWTSecret = "test-secret"

type recordingPublisher struct {
	events chan notify.StatusEvent
}

func (p *recordingPublisher) PublishStatus(_ context.Context, ev notify.StatusEvent) error {
	p.events <- ev
	return nil
}

func (p *recordingPublisher) Close() {}

type testServer struct {
	*httptest.Server
	events     *recordingPublisher
	supervisor string
	operator   string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	events := &recordingPublisher{events: make(chan notify.StatusEvent, 8)}
	server := httptest.NewServer(NewRouter(database, testJWTSecret, events))
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, _ := auth.HashPassword("password1")
	if _, err := store.CreateUser(ctx, database, model.User{
		Login: "enc01", Name: "Marta", Role: model.RoleSupervisor, PasswordHash: hash,
	}); err != nil {
		t.Fatalf("CreateUser supervisor: %v", err)
	}
	if _, err := store.CreateUser(ctx, database, model.User{
		Login: "op7", Name: "Rui", Role: model.RoleOperator, Sector: "Estamparia", Machine: "Prensa 3",
	}); err != nil {
		t.Fatalf("CreateUser operator: %v", err)
	}

	ts := &testServer{Server: server, events: events}
	ts.supervisor = login(t, server.URL, "supervisor", "enc01", "password1")
	ts.operator = login(t, server.URL, "operator", "op7", "")
	return ts
}

func login(t *testing.T, baseURL, role, identifier, secret string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"role": role, "identifier": identifier, "secret": secret})
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s failed: %d", identifier, resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if !loginResp.OK || loginResp.Token == "" {
		t.Fatalf("login %s: empty token", identifier)
	}
	return loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createRequest(t *testing.T, ts *testServer, token string, draft map[string]any) string {
	t.Helper()
	resp := do(t, "POST", ts.URL+"/api/requests", token, draft)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created createdResponse
	json.NewDecoder(resp.Body).Decode(&created)
	if !created.OK || created.ID == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}
	return created.ID
}

func TestPing(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, nil))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"wrong secret", map[string]string{"role": "supervisor", "identifier": "enc01", "secret": "wrong"}, http.StatusUnauthorized},
		{"wrong role", map[string]string{"role": "operator", "identifier": "enc01"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"role": "operator", "identifier": "nobody"}, http.StatusUnauthorized},
		{"missing identifier", map[string]string{"role": "operator"}, http.StatusBadRequest},
		{"legacy role name", map[string]string{"role": "operador", "identifier": "op7"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if tt.status != http.StatusUnauthorized {
				return
			}
			var out loginResponse
			json.NewDecoder(resp.Body).Decode(&out)
			if out.OK || out.Message != invalidCredentials {
				t.Errorf("expected ok=false with %q, got %+v", invalidCredentials, out)
			}
		})
	}
}

func TestRequestsAPIFlow(t *testing.T) {
	ts := setupTestServer(t)

	// Operators file under their own identity whatever the body says.
	id := createRequest(t, ts, ts.operator, map[string]any{
		"requesterId": "someone-else",
		"machine":     "Prensa 3",
		"sector":      "Estamparia",
		"description": "Vazamento de óleo",
		"priority":    "A",
	})

	resp := do(t, "GET", ts.URL+"/api/requests", ts.supervisor, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rows []model.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decoding rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	desc, ok := rows[0]["DESCRIPTION"].(map[string]any)
	if !ok || desc["type"] != "Buffer" {
		t.Errorf("expected DESCRIPTION as a Buffer envelope, got %#v", rows[0]["DESCRIPTION"])
	}

	got := model.Normalize(rows[0])
	if got.ID != id || got.RequesterID != "op7" || got.RequesterName != "Rui" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.Description != "Vazamento de óleo" || got.Priority != model.PriorityA || got.Status != model.StatusPending {
		t.Errorf("unexpected request: %+v", got)
	}

	// Requester scope.
	resp = do(t, "GET", ts.URL+"/api/requests?requester=op8", ts.supervisor, nil)
	json.NewDecoder(resp.Body).Decode(&rows)
	if len(rows) != 0 {
		t.Errorf("expected no rows for another requester, got %d", len(rows))
	}

	// Status change.
	resp = do(t, "PUT", ts.URL+"/api/requests/"+id, ts.supervisor, map[string]any{"status": "done", "notes": "Trocada a vedação"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, "GET", ts.URL+"/api/requests/"+id, ts.operator, nil)
	var row model.Row
	json.NewDecoder(resp.Body).Decode(&row)
	updated := model.Normalize(row)
	if updated.Status != model.StatusDone || updated.Notes != "Trocada a vedação" || updated.UpdatedAt == nil {
		t.Errorf("unexpected updated request: %+v", updated)
	}

	select {
	case ev := <-ts.events.events:
		if ev.ID != id || ev.Status != model.StatusDone || ev.Machine != "Prensa 3" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected a status event")
	}
}

func TestUpdateErrors(t *testing.T) {
	ts := setupTestServer(t)
	id := createRequest(t, ts, ts.operator, map[string]any{"machine": "Torno 1", "description": "Ruído"})

	resp := do(t, "PUT", ts.URL+"/api/requests/missing", ts.supervisor, map[string]any{"status": "done"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing request, got %d", resp.StatusCode)
	}

	resp = do(t, "PUT", ts.URL+"/api/requests/"+id, ts.supervisor, map[string]any{"status": "archived"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", resp.StatusCode)
	}

	resp = do(t, "POST", ts.URL+"/api/requests", ts.operator, map[string]any{"machine": "Torno 1", "description": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty description, got %d", resp.StatusCode)
	}
	var verr validationResponse
	json.NewDecoder(resp.Body).Decode(&verr)
	if verr.Field != "description" {
		t.Errorf("expected description field, got %+v", verr)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, nil))
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/requests")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	ts := setupTestServer(t)
	id := createRequest(t, ts, ts.operator, map[string]any{"machine": "Torno 1", "description": "Ruído"})

	resp := do(t, "PUT", ts.URL+"/api/requests/"+id, ts.operator, map[string]any{"status": "done"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for operator changing status, got %d", resp.StatusCode)
	}

	resp = do(t, "GET", ts.URL+"/api/users", ts.operator, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for operator listing users, got %d", resp.StatusCode)
	}

	resp = do(t, "DELETE", ts.URL+"/api/requests/"+id, ts.supervisor, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for supervisor delete, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/auth/logout", ts.operator, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, "GET", ts.URL+"/api/requests", ts.operator, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	ts := setupTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/auth/me", ts.operator, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me model.User
	json.NewDecoder(resp.Body).Decode(&me)
	if me.Login != "op7" || me.Role != model.RoleOperator || me.Machine != "Prensa 3" {
		t.Errorf("unexpected account: %+v", me)
	}

	do(t, "POST", ts.URL+"/api/auth/logout", ts.operator, nil)
	resp = do(t, "GET", ts.URL+"/api/auth/me", ts.operator, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with a revoked token, got %d", resp.StatusCode)
	}
}

func TestUsersAPI(t *testing.T) {
	ts := setupTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/users", ts.supervisor, map[string]string{
		"login": "op9", "name": "Ana", "role": "operador", "machine": "Injetora 2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created model.User
	json.NewDecoder(resp.Body).Decode(&created)
	if created.Role != model.RoleOperator {
		t.Errorf("expected operator, got %s", created.Role)
	}

	resp = do(t, "POST", ts.URL+"/api/users", ts.supervisor, map[string]string{
		"login": "enc02", "name": "Paulo", "role": "supervisor", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", resp.StatusCode)
	}

	resp = do(t, "GET", ts.URL+"/api/users?role=operator", ts.supervisor, nil)
	var users []model.User
	json.NewDecoder(resp.Body).Decode(&users)
	if len(users) != 2 {
		t.Errorf("expected 2 operators, got %d", len(users))
	}
}

func TestPhotoUpload(t *testing.T) {
	ts := setupTestServer(t)
	id := createRequest(t, ts, ts.operator, map[string]any{"machine": "Torno 1", "description": "Correia partida"})

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("photo", "foto.png")
	part.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", ts.URL+"/api/requests/"+id+"/photo", &body)
	req.Header.Set("Authorization", "Bearer "+ts.operator)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, "GET", ts.URL+"/api/requests/"+id+"/photo", ts.supervisor, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("expected JPEG photo, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}
