package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/eventnest/eventnest/internal/api"
	"github.com/eventnest/eventnest/internal/app"
	iauth "github.com/eventnest/eventnest/internal/auth"
	sharedtestutil "github.com/eventnest/eventnest/internal/database/testutil"
	"github.com/eventnest/eventnest/internal/middleware"
	"github.com/eventnest/eventnest/pkg/mail"
	"github.com/eventnest/eventnest/pkg/response"
)

// DefaultPassword is used by CreateUser.
const DefaultPassword = "Secret123!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Config    *app.Config
	Container *api.Container
	Router    *gin.Engine
	JWT       *iauth.JWTService
	Mailer    *mail.Recorder

	server *httptest.Server
}

// EnvOption customises NewEnv.
type EnvOption func(*app.Config)

// WithRateLimit enables request limiting on the test router.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{
			BaseURL: "https://eventnest.test",
			CORS:    app.CORSConfig{AllowedOrigins: []string{"*"}},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Notifications: app.NotificationConfig{
			Enabled:           true,
			ReminderTolerance: time.Hour,
			TypingTTL:         30 * time.Second,
			InvitationTTL:     48 * time.Hour,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	recorder := mail.NewRecorder()
	container, err := api.NewContainer(db, cfg, jwtSvc, api.WithMailer(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Stream.Close() })

	router, err := api.NewRouter(container, middleware.NewMemoryRateStore(nil))
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Config:    cfg,
		Container: container,
		Router:    router,
		JWT:       jwtSvc,
		Mailer:    recorder,
	}
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserPayload `json:"user"`
}

// Session is a registered user together with an access token.
type Session struct {
	User  UserPayload
	Token string
}

// Register creates a user through the public endpoint.
func (e *Env) Register(username, email, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	return user
}

// Login authenticates using the local provider and returns the issued token.
func (e *Env) Login(identifier, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Greater(e.T, result.ExpiresIn, 0)
	return result
}

// CreateUser registers a user with a random suffix and logs in.
func (e *Env) CreateUser(prefix string) Session {
	e.T.Helper()

	username := prefix + "-" + uuid.NewString()[:8]
	user := e.Register(username, username+"@example.com", DefaultPassword)
	login := e.Login(username, DefaultPassword)
	return Session{User: user, Token: login.AccessToken}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// RequireData asserts the status code and decodes the envelope data into dest.
func RequireData[T any](t *testing.T, w *httptest.ResponseRecorder, status int, dest *T) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	require.True(t, resp.Success, w.Body.String())
	DecodeInto(t, resp.Data, dest)
}

// RequireError asserts the status code and error code of a failed response.
func RequireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) APIResponse {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
	return resp
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Server lazily starts an HTTP server for socket tests.
func (e *Env) Server() *httptest.Server {
	e.T.Helper()
	if e.server == nil {
		e.server = httptest.NewServer(e.Router)
		e.T.Cleanup(e.server.Close)
	}
	return e.server
}

// Dial opens a WebSocket to path. An empty token omits the credential.
func (e *Env) Dial(path, token string) (*websocket.Conn, *http.Response, error) {
	e.T.Helper()

	target, err := url.Parse(strings.Replace(e.Server().URL, "http", "ws", 1) + path)
	require.NoError(e.T, err)
	if token != "" {
		query := target.Query()
		query.Set("token", token)
		target.RawQuery = query.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(target.String(), nil)
	if conn != nil {
		e.T.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

// ReadJSON reads the next socket frame into a map with a deadline.
func ReadJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// ReadUntil reads frames until one has the given type.
func ReadUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := ReadJSON(t, conn)
		if msg["type"] == msgType {
			return msg
		}
	}
	t.Fatalf("no %q message received", msgType)
	return nil
}

// RequireClose reads until the server closes the socket and asserts the close code.
func RequireClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		require.Equal(t, code, closeErr.Code)
		return
	}
}
