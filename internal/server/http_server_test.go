package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fashionjiok/internal/app"
	"github.com/oggyb/fashionjiok/internal/cache"
	"github.com/oggyb/fashionjiok/internal/config"
	"github.com/oggyb/fashionjiok/internal/db/dbtest"
	"github.com/oggyb/fashionjiok/internal/logger"
	"github.com/oggyb/fashionjiok/internal/server"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.ENV = "development"
	cfg.HTTP.AllowedOrigins = "*"
	cfg.Match.DeckSize = 10
	cfg.Match.ListPageSize = 10
	cfg.Auth.JWTSecret = "http-test-secret-long-enough-for-hs256"
	cfg.Auth.JWTTTL = time.Hour
	cfg.Auth.CodeTTL = time.Minute
	cfg.Auth.FixedCode = "123456"
	cfg.AI.Model = "test-model"
	return cfg
}

type fixture struct {
	app *fiber.App
	mr  *miniredis.Miniredis
}

func setupApp(t *testing.T, mutate ...func(*config.Config)) fixture {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	database := dbtest.New(t)
	dbtest.SeedProfiles(t, database,
		dbtest.Profile{ID: 1, Name: "Mina", Lat: 37.5563, Lon: 126.9105, Location: "Mangwon"},
		dbtest.Profile{ID: 2, Name: "Jun", Gender: "M", Lat: 37.5570, Lon: 126.9120, Location: "Mangwon"},
		dbtest.Profile{ID: 3, Name: "Hoon", Gender: "M"},
		dbtest.Profile{ID: 4, Name: "Sora"},
	)

	mr := miniredis.RunT(t)
	rc := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	appCtx := app.New(cfg, database, rc, logger.Discard())
	return fixture{app: server.NewHTTPServer(appCtx, server.NewServices(appCtx)), mr: mr}
}

type response struct {
	status int
	header http.Header
	body   map[string]any
	list   []any // set when the body is a bare JSON array
}

func (f fixture) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, header: resp.Header}
	switch {
	case len(raw) > 0 && raw[0] == '{':
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	case len(raw) > 0 && raw[0] == '[':
		require.NoError(t, json.Unmarshal(raw, &out.list), string(raw))
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	f := setupApp(t)

	res := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "running", res.body["status"])

	res = f.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "healthy", res.body["status"])

	res = f.do(t, http.MethodGet, "/api/test-db", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 2, res.body["result"])

	assert.NotEmpty(t, res.header.Get(fiber.HeaderXRequestID))

	f.mr.Close()
	res = f.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupApp(t)
	f.do(t, http.MethodGet, "/", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestLikeMatchChatFlow(t *testing.T) {
	f := setupApp(t)

	res := f.do(t, http.MethodPost, "/api/matches/like", map[string]any{"fromUser": 1, "toUser": 2})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, false, res.body["isMatch"])

	res = f.do(t, http.MethodGet, "/api/matches/liked-you/count?userId=2", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 1, res.body["count"])

	res = f.do(t, http.MethodGet, "/api/matches/liked-you?userId=2", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["likers"], 1)

	res = f.do(t, http.MethodPost, "/api/matches/like", map[string]any{"fromUser": 2, "toUser": 1})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["isMatch"])
	assert.EqualValues(t, 1, res.body["matchedUser"])
	roomID := res.body["roomId"].(float64)
	require.NotZero(t, roomID)

	res = f.do(t, http.MethodGet, "/api/matches/list?userId=1", nil)
	require.Equal(t, http.StatusOK, res.status)
	matches := res.list
	require.Len(t, matches, 1)
	assert.EqualValues(t, 2, matches[0].(map[string]any)["matchedUserId"])
	assert.Equal(t, roomID, matches[0].(map[string]any)["roomId"])

	res = f.do(t, http.MethodGet, "/api/matches/cards?userId=1", nil)
	require.Equal(t, http.StatusOK, res.status)
	require.NotNil(t, res.list)
	for _, c := range res.list {
		assert.NotEqualValues(t, 2, c.(map[string]any)["id"])
	}

	msgPath := fmt.Sprintf("/api/chats/%d/messages", int(roomID))
	res = f.do(t, http.MethodPost, msgPath, map[string]any{"senderId": 2, "text": "hi Mina"})
	require.Equal(t, http.StatusCreated, res.status)

	res = f.do(t, http.MethodGet, "/api/chats/list?userId=1", nil)
	require.Equal(t, http.StatusOK, res.status)
	rooms := res.body["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.Equal(t, "hi Mina", rooms[0].(map[string]any)["lastMessage"])

	res = f.do(t, http.MethodGet, msgPath+"?userId=1", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["messages"], 1)

	res = f.do(t, http.MethodGet, msgPath+"?userId=3", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestValidationEnvelope(t *testing.T) {
	f := setupApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing toUser", http.MethodPost, "/api/matches/like", map[string]any{"fromUser": 1}, http.StatusBadRequest},
		{"negative id", http.MethodPost, "/api/matches/like", map[string]any{"fromUser": -1, "toUser": 2}, http.StatusBadRequest},
		{"self like", http.MethodPost, "/api/matches/like", map[string]any{"fromUser": 1, "toUser": 1}, http.StatusBadRequest},
		{"missing userId", http.MethodGet, "/api/matches/cards", nil, http.StatusBadRequest},
		{"bad userId", http.MethodGet, "/api/users/explore?userId=abc", nil, http.StatusBadRequest},
		{"bad room id", http.MethodGet, "/api/chats/x/messages?userId=1", nil, http.StatusBadRequest},
		{"empty text", http.MethodPost, "/api/chats/1/messages", map[string]any{"senderId": 1, "text": ""}, http.StatusBadRequest},
		{"short code", http.MethodPost, "/api/auth/verify-code", map[string]any{"phone": "01012345678", "code": "12"}, http.StatusBadRequest},
		{"no history", http.MethodPost, "/api/recommendation", map[string]any{"userProfile": map[string]any{"a": 1}}, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, res.status)
			assert.Equal(t, false, res.body["success"])
			assert.NotEmpty(t, res.body["error"])
			assert.NotEmpty(t, res.body["code"])
		})
	}
}

func TestAuthFlowAndSession(t *testing.T) {
	f := setupApp(t)

	res := f.do(t, http.MethodPost, "/api/auth/send-code", map[string]any{"phone": "010-7777-8888"})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "123456", res.body["debugCode"])

	res = f.do(t, http.MethodPost, "/api/auth/verify-code", map[string]any{"phone": "01077778888", "code": "123456"})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["isNewUser"])
	user := res.body["user"].(map[string]any)
	assert.Equal(t, "01077778888", user["phone"])
	assert.Equal(t, false, user["profileCompleted"])
	token := res.body["token"].(string)
	uid := int(user["id"].(float64))

	bearer := "Bearer " + token
	res = f.do(t, http.MethodGet, "/api/matches/cards", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, res.status, "session supplies the user")

	res = f.do(t, http.MethodGet, fmt.Sprintf("/api/matches/cards?userId=%d", uid), nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, res.status)

	res = f.do(t, http.MethodGet, "/api/matches/cards?userId=1", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = f.do(t, http.MethodPost, "/api/matches/like", map[string]any{"toUser": 1}, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, res.status)

	res = f.do(t, http.MethodGet, "/api/matches/cards", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "unauthorized", res.body["code"])

	res = f.do(t, http.MethodGet, "/api/matches/cards", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestSendCodeRateLimited(t *testing.T) {
	f := setupApp(t, func(c *config.Config) {
		c.Auth.CodeRateLimit = 1
		c.Auth.CodeRateWindow = time.Minute
	})

	res := f.do(t, http.MethodPost, "/api/auth/send-code", map[string]any{"phone": "01012121212"})
	require.Equal(t, http.StatusOK, res.status)
	res = f.do(t, http.MethodPost, "/api/auth/send-code", map[string]any{"phone": "01012121212"})
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, "rate_limited", res.body["code"])
}

func TestExploreAndNearby(t *testing.T) {
	f := setupApp(t)

	res := f.do(t, http.MethodGet, "/api/users/explore?userId=1", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.list, 3)

	res = f.do(t, http.MethodGet, "/api/users/locations?userId=1&lat=37.5563&lon=126.9105", nil)
	require.Equal(t, http.StatusOK, res.status)
	users := res.list
	require.Len(t, users, 1)
	assert.EqualValues(t, 2, users[0].(map[string]any)["id"])
}

// List endpoints answer with a bare array, also when empty.
func TestListEndpointsReturnArrays(t *testing.T) {
	f := setupApp(t)

	for _, path := range []string{
		"/api/matches/list?userId=3",
		"/api/matches/cards?userId=3",
		"/api/users/explore?userId=3",
		"/api/users/locations?userId=3&lat=0&lon=0",
	} {
		res := f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, res.status, path)
		assert.Nil(t, res.body, path)
		assert.NotNil(t, res.list, path)
	}
}

func TestRecommendation(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		res := setupApp(t).do(t, http.MethodPost, "/api/recommendation", map[string]any{
			"userProfile": map[string]any{"name": "Mina"},
			"chatHistory": []any{},
		})
		assert.Equal(t, http.StatusServiceUnavailable, res.status)
	})

	t.Run("configured", func(t *testing.T) {
		stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"one\ntwo\nthree\nfour"}]}}]}`))
		}))
		t.Cleanup(stub.Close)

		f := setupApp(t, func(c *config.Config) {
			c.AI.APIKey = "k"
			c.AI.BaseURL = stub.URL
		})
		res := f.do(t, http.MethodPost, "/api/recommendation", map[string]any{
			"userProfile": map[string]any{"name": "Mina"},
			"chatHistory": []any{map[string]any{"role": "partner", "text": "hello"}},
		})
		require.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, []any{"one", "two", "three"}, res.body["suggestions"])
	})
}
