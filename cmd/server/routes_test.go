package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/troupe/internal/config"
)

func newTestApp(t *testing.T) (*gin.Engine, *App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := NewApp(config.NewForTesting())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	r := gin.New()
	RegisterRoutes(r, app)
	return r, app
}

func newTestServer(t *testing.T) *gin.Engine {
	r, _ := newTestApp(t)
	return r
}

func call(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type member struct {
	id, email, token string
}

func signup(t *testing.T, r *gin.Engine, timezone string) member {
	t.Helper()
	email := uuid.NewString() + "@example.test"
	w := call(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{"email": email, "password": "correct horse", "timezone": timezone})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := decode[map[string]string](t, w)["token"]
	require.NotEmpty(t, token)

	w = call(t, r, http.MethodGet, "/api/auth/current_profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return member{id: decode[map[string]any](t, w)["id"].(string), email: email, token: token}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestServer(t)

	w := call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "troupe_http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	r := newTestServer(t)
	m := signup(t, r, "")

	// duplicate email
	w := call(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{"email": m.email, "password": "another password"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// bad zone
	w = call(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "z@example.test", "password": "long enough", "timezone": "Nowhere/Land"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": m.email, "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]string](t, w)["token"])

	w = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": m.email, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// empty zone reports the server default
	w = call(t, r, http.MethodGet, "/api/auth/current_profile", m.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UTC", decode[map[string]any](t, w)["timezone"])

	w = call(t, r, http.MethodPut, "/api/auth/current_profile", m.token, gin.H{"email": m.email, "timezone": "Asia/Tokyo"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asia/Tokyo", decode[map[string]any](t, w)["timezone"])

	w = call(t, r, http.MethodGet, "/api/auth/current_profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = call(t, r, http.MethodGet, "/api/auth/current_profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRehearsalLifecycleOverHTTP(t *testing.T) {
	r := newTestServer(t)
	alice := signup(t, r, "Europe/Berlin")
	bob := signup(t, r, "UTC")
	eve := signup(t, r, "UTC")

	// project with bob added by email
	w := call(t, r, http.MethodPost, "/api/projects", alice.token, gin.H{"name": "Hamlet"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	projectID := decode[map[string]any](t, w)["id"].(string)

	w = call(t, r, http.MethodPost, "/api/projects/"+projectID+"/members", alice.token, gin.H{"email": bob.email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// only owners add members
	w = call(t, r, http.MethodPost, "/api/projects/"+projectID+"/members", bob.token, gin.H{"email": eve.email})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodGet, "/api/projects/"+projectID+"/members", bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	// bob is busy in the evening
	w = call(t, r, http.MethodPut, "/api/availability/2025-03-10", bob.token, gin.H{
		"ranges": []gin.H{{"start": "18:00", "end": "20:00"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "partial", decode[map[string]any](t, w)["status"])

	w = call(t, r, http.MethodPut, "/api/availability/2025-03-10", bob.token, gin.H{
		"ranges": []gin.H{{"start": "20:00", "end": "18:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the rehearsal books both members and reports bob's conflict
	w = call(t, r, http.MethodPost, "/api/projects/"+projectID+"/rehearsals", alice.token, gin.H{
		"title":     "Act I",
		"starts_at": "2025-03-10T17:00:00Z",
		"ends_at":   "2025-03-10T20:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Rehearsal struct {
			ID        string `json:"id"`
			SyncState string `json:"sync_state"`
		} `json:"rehearsal"`
		Sync struct {
			Booked    int `json:"booked"`
			Conflicts []struct {
				OwnerID string `json:"owner_id"`
			} `json:"conflicts"`
		} `json:"sync"`
	}](t, w)
	rehearsalID := created.Rehearsal.ID
	assert.Equal(t, "synced", created.Rehearsal.SyncState)
	assert.Equal(t, 2, created.Sync.Booked)
	require.Len(t, created.Sync.Conflicts, 1)
	assert.Equal(t, bob.id, created.Sync.Conflicts[0].OwnerID)

	// outsiders see nothing
	w = call(t, r, http.MethodGet, "/api/rehearsals/"+rehearsalID, eve.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// alice sees the rehearsal in Berlin time: 18:00-21:00
	w = call(t, r, http.MethodGet, "/api/availability?from=2025-03-10", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	days := decode[[]struct {
		Busy []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"busy"`
	}](t, w)
	require.Len(t, days, 1)
	require.Len(t, days[0].Busy, 1)
	assert.Equal(t, "18:00", days[0].Busy[0].Start)
	assert.Equal(t, "21:00", days[0].Busy[0].End)

	w = call(t, r, http.MethodGet, "/api/projects/"+projectID+"/availability?from=2025-03-10&to=2025-03-11", bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[struct {
		Members []any `json:"members"`
		Summary []struct {
			BusyMembers []string `json:"busy_members"`
		} `json:"summary"`
	}](t, w)
	assert.Len(t, view.Members, 2)
	require.Len(t, view.Summary, 2)
	assert.Len(t, view.Summary[0].BusyMembers, 2)
	assert.Empty(t, view.Summary[1].BusyMembers)

	// RSVP
	w = call(t, r, http.MethodPut, "/api/rehearsals/"+rehearsalID+"/response", bob.token, gin.H{"status": "maybe"})
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, r, http.MethodPut, "/api/rehearsals/"+rehearsalID+"/response", bob.token, gin.H{"status": "later"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(t, r, http.MethodGet, "/api/rehearsals/"+rehearsalID+"/responses", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	// move it; over 24h is rejected
	w = call(t, r, http.MethodPut, "/api/rehearsals/"+rehearsalID, bob.token, gin.H{"ends_at": "2025-03-12T20:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(t, r, http.MethodPut, "/api/rehearsals/"+rehearsalID, bob.token, gin.H{"ends_at": "2025-03-10T21:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodPost, "/api/rehearsals/"+rehearsalID+"/sync", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["removed"])

	w = call(t, r, http.MethodGet, "/api/projects/"+projectID+"/rehearsals?from=2025-03-10T00:00:00Z&to=2025-03-11T00:00:00Z", bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	// delete clears every booked slot
	w = call(t, r, http.MethodDelete, "/api/rehearsals/"+rehearsalID, alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["removed"])

	w = call(t, r, http.MethodGet, "/api/rehearsals/"+rehearsalID, alice.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, r, http.MethodGet, "/api/availability?from=2025-03-10", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "free", decode[[]map[string]any](t, w)[0]["status"])
}

func TestMemberLeavingDropsUpcomingSlots(t *testing.T) {
	r := newTestServer(t)
	alice := signup(t, r, "UTC")
	bob := signup(t, r, "UTC")

	w := call(t, r, http.MethodPost, "/api/projects", alice.token, gin.H{"name": "Band", "timezone": "America/New_York"})
	require.Equal(t, http.StatusCreated, w.Code)
	projectID := decode[map[string]any](t, w)["id"].(string)
	w = call(t, r, http.MethodPost, "/api/projects/"+projectID+"/members", alice.token, gin.H{"user_id": bob.id})
	require.Equal(t, http.StatusCreated, w.Code)

	w = call(t, r, http.MethodPost, "/api/projects/"+projectID+"/rehearsals", alice.token, gin.H{
		"title":     "Gig prep",
		"starts_at": "2099-06-01T18:00:00Z",
		"ends_at":   "2099-06-01T20:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// bob steps out himself, he may not change his role
	w = call(t, r, http.MethodPut, "/api/projects/"+projectID+"/members/"+bob.id, bob.token, gin.H{"status": "inactive", "role": "owner"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(t, r, http.MethodPut, "/api/projects/"+projectID+"/members/"+bob.id, bob.token, gin.H{"status": "inactive"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/availability?from=2099-06-01", bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "free", decode[[]map[string]any](t, w)[0]["status"])

	w = call(t, r, http.MethodGet, "/api/availability?from=2099-06-01", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", decode[[]map[string]any](t, w)[0]["status"])
}

func TestProjectEventStream(t *testing.T) {
	r, app := newTestApp(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := signup(t, r, "UTC")
	eve := signup(t, r, "UTC")
	w := call(t, r, http.MethodPost, "/api/projects", alice.token, gin.H{"name": "Quartet"})
	require.Equal(t, http.StatusCreated, w.Code)
	projectID := decode[map[string]any](t, w)["id"].(string)

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/projects/" + projectID + "/events?access_token="

	_, resp, err := websocket.DefaultDialer.Dial(base+eve.token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+alice.token, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.Events.Subscribers(projectID) == 1 }, time.Second, 5*time.Millisecond)

	w = call(t, r, http.MethodPost, "/api/projects/"+projectID+"/rehearsals", alice.token, gin.H{
		"title":     "Run-through",
		"starts_at": "2025-04-01T18:00:00Z",
		"ends_at":   "2025-04-01T19:30:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type      string   `json:"type"`
		ProjectID string   `json:"project_id"`
		Members   []string `json:"members"`
		Booked    int      `json:"booked"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "rehearsal.booked", ev.Type)
	assert.Equal(t, projectID, ev.ProjectID)
	assert.Equal(t, []string{alice.id}, ev.Members)
	assert.Equal(t, 1, ev.Booked)
}
