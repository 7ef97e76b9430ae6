package client

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/trezcool/silabo/core/user"
)

func TestClient_Login(t *testing.T) {
	tok := signedToken(t, []string{string(user.RoleProfessor), string(user.RoleAdministrator)})
	c, state, store := newTestClient(t, jsonHandler(http.StatusOK, authResponse{
		ID:        "id-1",
		FirstName: "Aza",
		LastName:  "Lolo",
		Email:     "aza@test.cd",
		Token:     tok,
	}))

	if err := c.Login(context.Background(), "aza@test.cd", "secret"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	sess := state.Session()
	if !sess.IsAuthenticated || sess.User == nil {
		t.Fatalf("session not signed in: %+v", sess)
	}
	if sess.User.Token != tok {
		t.Errorf("Token = %q, want %q", sess.User.Token, tok)
	}
	// roles come from the token claims
	want := []user.Role{user.RoleProfessor, user.RoleAdministrator}
	if !reflect.DeepEqual(sess.User.Roles, want) {
		t.Errorf("Roles = %v, want %v", sess.User.Roles, want)
	}
	if sess.Error != "" || sess.IsFetching {
		t.Errorf("session not settled: %+v", sess)
	}
	// the signed-in session survives a restart
	if store.Token() != tok {
		t.Errorf("persisted token = %q, want %q", store.Token(), tok)
	}
}

func TestClient_LoginBadCredentials(t *testing.T) {
	c, state, _ := newTestClient(t, jsonHandler(http.StatusUnauthorized, map[string]string{"error": "authentication failed"}))

	err := c.Login(context.Background(), "aza@test.cd", "nope")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Login() error = %v, want *APIError", err)
	}

	want := "Invalid email or password. Please try again."
	if apiErr.Message != want {
		t.Errorf("Message = %q, want %q", apiErr.Message, want)
	}

	sess := state.Session()
	if sess.User != nil || sess.IsAuthenticated {
		t.Errorf("session signed in after failed login: %+v", sess)
	}
	if sess.Error != want {
		t.Errorf("session error = %q, want %q", sess.Error, want)
	}
	if sess.IsFetching {
		t.Error("fetching flag still set after the call settled")
	}
}

func TestClient_Register(t *testing.T) {
	tok := signedToken(t, []string{string(user.RoleStudent)})
	var gotBody RegisterInput
	c, state, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(authResponse{ID: "id-1", Email: gotBody.Email, Token: tok})
	}))

	in := RegisterInput{FirstName: "Aza", LastName: "Lolo", Email: "aza@test.cd", Password: "V3ry$ecret"}
	if err := c.Register(context.Background(), in); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if gotBody != in {
		t.Errorf("request body = %+v, want %+v", gotBody, in)
	}

	sess := state.Session()
	if !sess.IsAuthenticated {
		t.Fatalf("session not signed in: %+v", sess)
	}
	if want := []user.Role{user.RoleStudent}; !reflect.DeepEqual(sess.User.Roles, want) {
		t.Errorf("Roles = %v, want %v", sess.User.Roles, want)
	}
}

func TestClient_RegisterDuplicateEmail(t *testing.T) {
	c, state, _ := newTestClient(t, jsonHandler(http.StatusConflict, map[string]string{"error": "a user with this email already exists"}))

	err := c.Register(context.Background(), RegisterInput{Email: "aza@test.cd", Password: "V3ry$ecret"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Register() error = %v, want *APIError", err)
	}
	if apiErr.Kind != KindConflict {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, KindConflict)
	}

	want := "This email is already registered. Please use a different email or try logging in."
	if apiErr.Message != want {
		t.Errorf("Message = %q, want %q", apiErr.Message, want)
	}
	if sess := state.Session(); sess.Error != want {
		t.Errorf("session error = %q, want %q", sess.Error, want)
	}
}

func TestClient_UpdateProfile(t *testing.T) {
	c, state, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in ProfileInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		// profile responses carry neither token nor roles
		_ = json.NewEncoder(w).Encode(authResponse{
			ID:        "id-1",
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     in.Email,
		})
	}))

	signIn(t, state, []user.Role{user.RoleProfessor})
	prev := state.Session()

	err := c.UpdateProfile(context.Background(), ProfileInput{FirstName: "Kin", LastName: "Lolo", Email: "kin@test.cd"})
	if err != nil {
		t.Fatalf("UpdateProfile() failed: %v", err)
	}

	sess := state.Session()
	if sess.User.FirstName != "Kin" || sess.User.Email != "kin@test.cd" {
		t.Errorf("profile not applied: %+v", sess.User)
	}
	// the bearer token and role set must survive the update
	if sess.User.Token != prev.User.Token {
		t.Errorf("Token = %q, want %q", sess.User.Token, prev.User.Token)
	}
	if !reflect.DeepEqual(sess.User.Roles, prev.User.Roles) {
		t.Errorf("Roles = %v, want %v", sess.User.Roles, prev.User.Roles)
	}
}

func TestClient_UpdateProfileExpiredSession(t *testing.T) {
	c, state, store := newTestClient(t, jsonHandler(http.StatusUnauthorized, map[string]string{"error": "token expired"}))

	signIn(t, state, []user.Role{user.RoleStudent})

	err := c.UpdateProfile(context.Background(), ProfileInput{FirstName: "Kin"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("UpdateProfile() error = %v, want *APIError", err)
	}

	want := "Your session has expired. Please log in again."
	if apiErr.Message != want {
		t.Errorf("Message = %q, want %q", apiErr.Message, want)
	}

	// the stale session is dropped, and the message explains why
	sess := state.Session()
	if sess.User != nil || sess.IsAuthenticated {
		t.Errorf("session still signed in: %+v", sess)
	}
	if sess.Error != want {
		t.Errorf("session error = %q, want %q", sess.Error, want)
	}
	if store.Token() != "" {
		t.Errorf("persisted token survived logout: %q", store.Token())
	}
}

func TestClient_ChangePasswordWrongCurrent(t *testing.T) {
	c, state, _ := newTestClient(t, jsonHandler(http.StatusUnauthorized, map[string]string{"error": "invalid current password"}))

	signIn(t, state, nil)

	err := c.ChangePassword(context.Background(), "wrong", "V3ry$ecret", "V3ry$ecret")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("ChangePassword() error = %v, want *APIError", err)
	}

	want := "Current password is incorrect."
	if apiErr.Message != want {
		t.Errorf("Message = %q, want %q", apiErr.Message, want)
	}
	if sess := state.Session(); sess.Error != want {
		t.Errorf("session error = %q, want %q", sess.Error, want)
	}
}

func TestClient_ForgotPassword(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c, state, _ := newTestClient(t, jsonHandler(http.StatusOK, map[string]string{"message": "reset email sent"}))
		if err := c.ForgotPassword(context.Background(), "aza@test.cd"); err != nil {
			t.Fatalf("ForgotPassword() failed: %v", err)
		}
		if sess := state.Session(); sess.Error != "" || sess.IsFetching {
			t.Errorf("session not settled: %+v", sess)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		c, state, _ := newTestClient(t, jsonHandler(http.StatusNotFound, map[string]string{"error": "user not found"}))

		err := c.ForgotPassword(context.Background(), "nobody@test.cd")
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("ForgotPassword() error = %v, want *APIError", err)
		}

		want := "No account found with this email address."
		if apiErr.Message != want {
			t.Errorf("Message = %q, want %q", apiErr.Message, want)
		}
		if sess := state.Session(); sess.Error != want {
			t.Errorf("session error = %q, want %q", sess.Error, want)
		}
	})
}

func TestClient_ResetPassword(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		var gotBody ResetPasswordInput
		c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusOK)
		}))

		in := ResetPasswordInput{UID: "dWlk", Token: "tok", Password: "V3ry$ecret", PasswordConfirm: "V3ry$ecret"}
		if err := c.ResetPassword(context.Background(), in); err != nil {
			t.Fatalf("ResetPassword() failed: %v", err)
		}
		if gotBody != in {
			t.Errorf("request body = %+v, want %+v", gotBody, in)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		c, _, _ := newTestClient(t, jsonHandler(http.StatusBadRequest, map[string]string{"error": "invalid or expired reset link"}))

		err := c.ResetPassword(context.Background(), ResetPasswordInput{UID: "dWlk", Token: "stale"})
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("ResetPassword() error = %v, want *APIError", err)
		}
		// the server's own message wins when it provides one
		if want := "invalid or expired reset link"; apiErr.Message != want {
			t.Errorf("Message = %q, want %q", apiErr.Message, want)
		}
	})

	t.Run("no detail", func(t *testing.T) {
		c, _, _ := newTestClient(t, jsonHandler(http.StatusBadRequest, map[string]string{}))

		err := c.ResetPassword(context.Background(), ResetPasswordInput{})
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("ResetPassword() error = %v, want *APIError", err)
		}
		if want := "Failed to reset password"; apiErr.Message != want {
			t.Errorf("Message = %q, want %q", apiErr.Message, want)
		}
	})
}

func TestRolesFromToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		body  []user.Role
		want  []user.Role
	}{
		{
			name:  "claims win",
			token: signedToken(t, []string{string(user.RoleProfessor)}),
			body:  []user.Role{user.RoleStudent},
			want:  []user.Role{user.RoleProfessor},
		},
		{
			name:  "single string claim",
			token: signedToken(t, string(user.RoleAdministrator)),
			want:  []user.Role{user.RoleAdministrator},
		},
		{
			name:  "body fallback",
			token: signedToken(t, nil),
			body:  []user.Role{user.RoleStudent},
			want:  []user.Role{user.RoleStudent},
		},
		{
			name:  "malformed token falls back to body",
			token: "not.a.jwt",
			body:  []user.Role{user.RoleStudent},
			want:  []user.Role{user.RoleStudent},
		},
		{
			name:  "nothing anywhere means empty set",
			token: signedToken(t, nil),
			want:  []user.Role{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := accountRoles(authResponse{Token: tt.token, Roles: tt.body})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("accountRoles() = %v, want %v", got, tt.want)
			}
		})
	}
}
