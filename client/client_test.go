package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/silabo/core"
	"github.com/trezcool/silabo/core/session"
	"github.com/trezcool/silabo/core/user"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG: %s %v", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO: %s %v", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN: %s %v", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL: %s %v", msg, args) }

func newTestState(t *testing.T) (*session.State, session.Store) {
	t.Helper()
	store := session.NewFileStore(filepath.Join(t.TempDir(), "authState.json"), testLogger{t})
	return session.NewState(store), store
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.State, session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	state, store := newTestState(t)
	c, err := NewClient(core.ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, state)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return c, state, store
}

// signedToken mints a token carrying the given roles claim. The client never
// verifies signatures so any key will do.
func signedToken(t *testing.T, roles interface{}) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "4790f34c-85a5-4454-ba65-53e0ab97a30f"}
	if roles != nil {
		claims["roles"] = roles
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return tok
}

func jsonHandler(status int, body interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func signIn(t *testing.T, state *session.State, roles []user.Role) {
	t.Helper()
	state.SetUser(&session.Account{
		ID:        "4790f34c-85a5-4454-ba65-53e0ab97a30f",
		FirstName: "Aza",
		LastName:  "Lolo",
		Email:     "aza@test.cd",
		Token:     signedToken(t, nil),
		Roles:     roles,
	})
}

func TestClient_BearerToken(t *testing.T) {
	var gotAuth string
	c, state, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))

	// anonymous requests carry no Authorization header
	req, err := c.NewRequest(context.Background(), http.MethodGet, "v1/users", nil)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	if err = c.Do(req, nil); err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}

	signIn(t, state, nil)
	tok := state.Session().User.Token

	req, err = c.NewRequest(context.Background(), http.MethodGet, "v1/users", nil)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	if err = c.Do(req, nil); err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if want := "Bearer " + tok; gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestClient_UnauthorizedAnywhereLogsOut(t *testing.T) {
	c, state, store := newTestClient(t, jsonHandler(http.StatusUnauthorized, map[string]string{"error": "token expired"}))

	signIn(t, state, []user.Role{user.RoleProfessor})
	if store.Token() == "" {
		t.Fatal("expected a persisted token before the call")
	}

	// any endpoint will do; this is not an auth operation
	req, err := c.NewRequest(context.Background(), http.MethodGet, "v1/users", nil)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	err = c.Do(req, nil)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Do() error = %v, want *APIError", err)
	}
	if apiErr.Kind != KindAuthentication {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, KindAuthentication)
	}

	sess := state.Session()
	if sess.User != nil || sess.IsAuthenticated {
		t.Errorf("session still signed in after 401: %+v", sess)
	}
	if store.Token() != "" {
		t.Errorf("persisted token survived logout: %q", store.Token())
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listening anymore

	state, _ := newTestState(t)
	c, err := NewClient(core.ClientConfig{BaseURL: url, Timeout: time.Second}, state)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	err = c.Login(context.Background(), "aza@test.cd", "secret")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Login() error = %v, want *APIError", err)
	}
	if apiErr.Kind != KindNetwork {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, KindNetwork)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", apiErr.StatusCode)
	}

	want := "No response from server. Please check your internet connection."
	if apiErr.Message != want {
		t.Errorf("Message = %q, want %q", apiErr.Message, want)
	}
	if sess := state.Session(); sess.Error != want {
		t.Errorf("session error = %q, want %q", sess.Error, want)
	}
}

func TestClient_FetchingFlag(t *testing.T) {
	c, state, _ := newTestClient(t, jsonHandler(http.StatusOK, authResponse{
		ID:    "id-1",
		Email: "aza@test.cd",
		Token: signedToken(t, []string{string(user.RoleStudent)}),
	}))

	var seen []bool
	unsubscribe := state.Subscribe(func(sess session.Session) { seen = append(seen, sess.IsFetching) })
	defer unsubscribe()

	if err := c.Login(context.Background(), "aza@test.cd", "secret"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	// raised for the duration of the call, settled by the end
	var raised bool
	for _, f := range seen {
		raised = raised || f
	}
	if !raised {
		t.Error("fetching flag never raised")
	}
	if sess := state.Session(); sess.IsFetching {
		t.Error("fetching flag still set after the call settled")
	}
}
