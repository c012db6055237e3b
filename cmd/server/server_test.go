package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appkafka "example.com/popular/internal/broker"
	"example.com/popular/internal/graph"
	"example.com/popular/internal/models"
	"example.com/popular/internal/service"
	"example.com/popular/internal/store"
	"example.com/popular/internal/thread"
	"golang.org/x/crypto/bcrypt"
)

//
// --- Helpers ---
//

type testEnv struct {
	ts    *httptest.Server
	store *store.MockStore
	kafka *appkafka.MockKafka
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{}
	dir := t.TempDir()
	svc := service.New(
		mockStore,
		graph.New(mockStore, appkafka.NewEdgePublisher(mockKafka)),
		thread.New(mockStore),
		service.BcryptHasher{Cost: bcrypt.MinCost},
		service.DiskImages{Dir: dir},
	)
	ts := httptest.NewServer(New(svc, dir).routes())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: mockStore, kafka: mockKafka}
}

// sendJSONRequest sends body as JSON and decodes the response into out (if not nil).
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int, out any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, expectedStatus, resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("decode response: %v (%s)", err, string(b))
		}
	}
}

type authResp struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func signupHelper(t *testing.T, env *testEnv, nickname string) authResp {
	t.Helper()
	var res authResp
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users", map[string]any{
		"nickname": nickname,
		"email":    nickname + "@example.com",
		"pw":       "password123",
	}, "", http.StatusCreated, &res)
	if res.Token == "" || res.User.ID == "" {
		t.Fatalf("expected token and user id, got %+v", res)
	}
	return res
}

func createStoreHelper(t *testing.T, env *testEnv, token string) models.Store {
	t.Helper()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var st models.Store
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/stores", map[string]any{
		"title": "popup", "description": "d", "brand": "b", "location": "Seoul",
		"start_date": start, "end_date": start.AddDate(0, 0, 7),
	}, token, http.StatusCreated, &st)
	return st
}

func createFeedHelper(t *testing.T, env *testEnv, token string) models.Feed {
	t.Helper()
	var f models.Feed
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/feeds", map[string]any{
		"title": "who is going?", "board": "gather", "content": "June 16",
	}, token, http.StatusCreated, &f)
	return f
}

//
// --- Tests ---
//

func TestSignupLoginFlow(t *testing.T) {
	env := setupTestServer(t)
	alice := signupHelper(t, env, "alice")

	var res authResp
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/login",
		map[string]string{"email": "alice@example.com", "pw": "password123"}, "", http.StatusOK, &res)
	if res.User.ID != alice.User.ID {
		t.Fatalf("login returned %s, want %s", res.User.ID, alice.User.ID)
	}

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/login",
		map[string]string{"email": "alice@example.com", "pw": "wrong-password"}, "", http.StatusUnauthorized, nil)

	// duplicate nickname
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users", map[string]any{
		"nickname": "alice", "email": "other@example.com", "pw": "password123",
	}, "", http.StatusConflict, nil)

	var exists map[string]bool
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/check-nickname?nickname=alice", nil, "", http.StatusOK, &exists)
	if !exists["isExists"] {
		t.Fatal("expected nickname to exist")
	}
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/check-email?email=nobody@example.com", nil, "", http.StatusOK, &exists)
	if exists["isExists"] {
		t.Fatal("expected email to be free")
	}

	var me models.User
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/me", nil, alice.Token, http.StatusOK, &me)
	if me.Nickname != "alice" {
		t.Fatalf("unexpected me: %+v", me)
	}
}

func TestSignupInvalidBody(t *testing.T) {
	env := setupTestServer(t)
	resp, err := http.Post(env.ts.URL+"/users", "application/json", strings.NewReader("{invalid-json}"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// follow -> check both sides -> unfollow
func TestFollowFlow(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")
	u2 := signupHelper(t, env, "u2")

	var user models.User
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+u2.User.ID, nil, u1.Token, http.StatusOK, &user)
	if len(user.Following) != 1 || user.Following[0].ID != u2.User.ID || user.Following[0].Nickname != "u2" {
		t.Fatalf("unexpected following: %+v", user.Following)
	}

	// a second follow is a no-op
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+u2.User.ID, nil, u1.Token, http.StatusOK, &user)
	if len(user.Following) != 1 {
		t.Fatalf("follow is not idempotent: %+v", user.Following)
	}

	var target models.User
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/"+u2.User.ID, nil, "", http.StatusOK, &target)
	if len(target.Follower) != 1 || target.Follower[0].ID != u1.User.ID {
		t.Fatalf("unexpected follower: %+v", target.Follower)
	}

	if n := len(env.kafka.Written()); n != 1 {
		t.Fatalf("expected 1 edge event, got %d", n)
	}

	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/users/me/following/"+u2.User.ID, nil, u1.Token, http.StatusOK, &user)
	if len(user.Following) != 0 {
		t.Fatalf("expected empty following, got %+v", user.Following)
	}
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/"+u2.User.ID, nil, "", http.StatusOK, &target)
	if len(target.Follower) != 0 {
		t.Fatalf("expected empty follower, got %+v", target.Follower)
	}
}

func TestFollowErrors(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+u1.User.ID, nil, u1.Token, http.StatusBadRequest, nil)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+models.NewID(), nil, u1.Token, http.StatusNotFound, nil)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/not-an-id", nil, u1.Token, http.StatusBadRequest, nil)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+models.NewID(), nil, "", http.StatusUnauthorized, nil)
}

func TestFollowStoreFailure(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")
	u2 := signupHelper(t, env, "u2")

	env.store.SetFailApply(true)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+u2.User.ID, nil, u1.Token, http.StatusInternalServerError, nil)
	env.store.SetFailApply(false)

	var user models.User
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/"+u1.User.ID, nil, "", http.StatusOK, &user)
	if len(user.Following) != 0 {
		t.Fatalf("failed follow left a partial edge: %+v", user.Following)
	}
}

func TestScrapFlow(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")
	st := createStoreHelper(t, env, u1.Token)

	var user models.User
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/scraps/"+st.ID, nil, u1.Token, http.StatusOK, &user)
	if len(user.Scraps) != 1 || user.Scraps[0] != st.ID {
		t.Fatalf("unexpected scraps: %+v", user.Scraps)
	}

	var got models.Store
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/stores/"+st.ID, nil, "", http.StatusOK, &got)
	if len(got.Scraps) != 1 || got.Scraps[0] != u1.User.ID {
		t.Fatalf("unexpected store scraps: %+v", got.Scraps)
	}

	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/users/me/scraps/"+st.ID, nil, u1.Token, http.StatusOK, &user)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/stores/"+st.ID, nil, "", http.StatusOK, &got)
	if len(user.Scraps) != 0 || len(got.Scraps) != 0 {
		t.Fatalf("unscrap left entries: user=%v store=%v", user.Scraps, got.Scraps)
	}
}

func TestFeedCommentThread(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")
	feed := createFeedHelper(t, env, u1.Token)

	var c1, r1 models.Comment
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/comments", map[string]any{
		"content": "me!", "parent": map[string]string{"type": "Feed", "id": feed.ID},
	}, u1.Token, http.StatusCreated, &c1)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/comments", map[string]any{
		"content": "me too", "parent": map[string]string{"type": "Comment", "id": c1.ID},
	}, u1.Token, http.StatusCreated, &r1)

	var nodes []struct {
		Comment models.Comment `json:"comment"`
		Replies []struct {
			Comment models.Comment `json:"comment"`
		} `json:"replies"`
	}
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feeds/"+feed.ID+"/comments", nil, "", http.StatusOK, &nodes)
	if len(nodes) != 1 || nodes[0].Comment.ID != c1.ID || len(nodes[0].Replies) != 1 || nodes[0].Replies[0].Comment.ID != r1.ID {
		t.Fatalf("unexpected thread: %+v", nodes)
	}

	var parent struct {
		Type string         `json:"type"`
		Data models.Comment `json:"data"`
	}
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/comments/"+r1.ID+"/parent", nil, "", http.StatusOK, &parent)
	if parent.Type != "Comment" || parent.Data.ID != c1.ID {
		t.Fatalf("unexpected parent: %+v", parent)
	}

	var root models.Feed
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/comments/"+r1.ID+"/root", nil, "", http.StatusOK, &root)
	if root.ID != feed.ID {
		t.Fatalf("unexpected root: %s", root.ID)
	}

	// dangling parent and unknown parent type
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/comments", map[string]any{
		"content": "lost", "parent": map[string]string{"type": "Comment", "id": models.NewID()},
	}, u1.Token, http.StatusNotFound, nil)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/comments", map[string]any{
		"content": "lost", "parent": map[string]string{"type": "Post", "id": feed.ID},
	}, u1.Token, http.StatusBadRequest, nil)
}

func TestFeedViewsLikesAndOwnership(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")
	u2 := signupHelper(t, env, "u2")
	feed := createFeedHelper(t, env, u1.Token)

	var got models.Feed
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feeds/"+feed.ID, nil, "", http.StatusOK, &got)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feeds/"+feed.ID, nil, "", http.StatusOK, &got)
	if got.Views != 2 {
		t.Fatalf("expected 2 views, got %d", got.Views)
	}

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/feeds/"+feed.ID+"/likes", nil, u2.Token, http.StatusOK, &got)
	if len(got.Likes) != 1 || got.Likes[0] != u2.User.ID {
		t.Fatalf("unexpected likes: %+v", got.Likes)
	}
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/feeds/"+feed.ID+"/reports", nil, u2.Token, http.StatusOK, &got)
	if len(got.Reports) != 1 {
		t.Fatalf("unexpected reports: %+v", got.Reports)
	}
	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/feeds/"+feed.ID+"/likes", nil, u2.Token, http.StatusOK, &got)
	if len(got.Likes) != 0 {
		t.Fatalf("unexpected likes after unlike: %+v", got.Likes)
	}

	sendJSONRequest(t, http.MethodPatch, env.ts.URL+"/feeds/"+feed.ID, map[string]string{"title": "mine"}, u2.Token, http.StatusForbidden, nil)
	sendJSONRequest(t, http.MethodPatch, env.ts.URL+"/feeds/"+feed.ID, map[string]string{"title": "edited"}, u1.Token, http.StatusOK, &got)
	if got.Title != "edited" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/feeds/"+feed.ID, nil, u2.Token, http.StatusForbidden, nil)
	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/feeds/"+feed.ID, nil, u1.Token, http.StatusNoContent, nil)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feeds/"+feed.ID, nil, "", http.StatusNotFound, nil)
}

func TestUpdateAndDeleteMe(t *testing.T) {
	env := setupTestServer(t)
	u1 := signupHelper(t, env, "u1")

	var user models.User
	sendJSONRequest(t, http.MethodPatch, env.ts.URL+"/users/me", map[string]any{
		"introduce": "hi", "interested_category": []string{"fashion", "food"},
	}, u1.Token, http.StatusOK, &user)
	if user.Introduce != "hi" || len(user.InterestedCategory) != 2 {
		t.Fatalf("unexpected user: %+v", user)
	}

	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/users/me", nil, u1.Token, http.StatusNoContent, nil)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/users/"+u1.User.ID, nil, "", http.StatusNotFound, nil)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/health", nil, "", http.StatusOK, nil)

	u1 := signupHelper(t, env, "u1")
	u2 := signupHelper(t, env, "u2")
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/users/me/following/"+u2.User.ID, nil, u1.Token, http.StatusOK, nil)

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "popular_edge_mutations_total") {
		t.Fatal("expected edge mutation counter in /metrics")
	}
}
