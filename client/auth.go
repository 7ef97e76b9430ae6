package client

import (
	"context"
	"net/http"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/silabo/core/session"
	"github.com/trezcool/silabo/core/user"
)

type (
	// RegisterInput is the payload for Register.
	RegisterInput struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		PhonePrefix string `json:"phonePrefix,omitempty"`
		PhoneNumber string `json:"phoneNumber,omitempty"`
	}

	// ProfileInput is the payload for UpdateProfile.
	ProfileInput struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Email       string `json:"email"`
		PhonePrefix string `json:"phonePrefix,omitempty"`
		PhoneNumber string `json:"phoneNumber,omitempty"`
	}

	// ResetPasswordInput is the payload for ResetPassword. UID and Token come
	// from the link in the reset email.
	ResetPasswordInput struct {
		UID             string `json:"uid"`
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}

	loginInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	changePasswordInput struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}

	forgotPasswordInput struct {
		Email string `json:"email"`
	}

	// authResponse is what the auth endpoints return on success.
	authResponse struct {
		ID          string      `json:"id"`
		FirstName   string      `json:"firstName"`
		LastName    string      `json:"lastName"`
		Email       string      `json:"email"`
		Token       string      `json:"token"`
		PhonePrefix string      `json:"phonePrefix"`
		PhoneNumber string      `json:"phoneNumber"`
		Roles       []user.Role `json:"roles"`
	}
)

// Register creates an account and signs the session in.
func (c *Client) Register(ctx context.Context, in RegisterInput) error {
	return c.authenticate(ctx, "v1/auth/register", in, registerMessage)
}

// Login signs the session in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "v1/auth/login", loginInput{Email: email, Password: password}, loginMessage)
}

// Logout drops the session locally. The token is stateless so there is
// nothing to tell the server.
func (c *Client) Logout() {
	c.state.Logout()
}

// UpdateProfile updates the signed-in account's profile. The bearer token and
// role set are untouched: the server does not re-issue a token for a profile
// edit.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileInput) error {
	prev := c.state.Session()

	var resp authResponse
	err := c.do(ctx, http.MethodPut, "v1/auth/profile", in, &resp, updateProfileMessage)
	if err != nil {
		return err
	}

	acct := accountFromResponse(resp)
	if prev.User != nil {
		acct.Token = prev.User.Token
		acct.Roles = prev.User.Roles
	}
	c.state.SetUser(acct)
	return nil
}

// ChangePassword changes the signed-in account's password.
func (c *Client) ChangePassword(ctx context.Context, current, newPwd, confirm string) error {
	in := changePasswordInput{CurrentPassword: current, NewPassword: newPwd, ConfirmPassword: confirm}
	return c.do(ctx, http.MethodPost, "v1/auth/change-password", in, nil, changePasswordMessage)
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	in := forgotPasswordInput{Email: email}
	return c.do(ctx, http.MethodPost, "v1/auth/forgot-password", in, nil, forgotPasswordMessage)
}

// ResetPassword completes a password reset started by ForgotPassword.
func (c *Client) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	return c.do(ctx, http.MethodPost, "v1/auth/reset-password", in, nil, resetPasswordMessage)
}

// authenticate runs an operation that signs the session in on success.
func (c *Client) authenticate(ctx context.Context, path string, in interface{}, msg func(*APIError) string) error {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, in, &resp, msg); err != nil {
		return err
	}
	c.state.SetUser(accountFromResponse(resp))
	return nil
}

// do wraps Client.Do with the session bookkeeping every operation shares:
// clear any stale error, raise the in-flight flag for the duration of the
// call, and on failure record the operation's user-facing message.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, msg func(*APIError) string) error {
	c.state.SetError("")
	c.state.SetFetching(true)
	defer c.state.SetFetching(false)

	req, err := c.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	if err = c.Do(req, out); err != nil {
		if apiErr, ok := err.(*APIError); ok {
			apiErr.Message = msg(apiErr)
			c.state.SetError(apiErr.Message)
			return apiErr
		}
		return err
	}
	return nil
}

func accountFromResponse(resp authResponse) *session.Account {
	return &session.Account{
		ID:          resp.ID,
		FirstName:   resp.FirstName,
		LastName:    resp.LastName,
		Email:       resp.Email,
		Token:       resp.Token,
		PhonePrefix: resp.PhonePrefix,
		PhoneNumber: resp.PhoneNumber,
		Roles:       accountRoles(resp),
	}
}

// accountRoles resolves the role set for a fresh sign-in. The token's claims
// are the source of truth; the response body is a fallback for servers that
// do not embed roles in the token. No roles anywhere means an empty set.
func accountRoles(resp authResponse) []user.Role {
	if roles := rolesFromToken(resp.Token); roles != nil {
		return roles
	}
	if resp.Roles != nil {
		return resp.Roles
	}
	return []user.Role{}
}

// rolesFromToken reads the "roles" claim out of a JWT without verifying the
// signature. The client has no signing key; it only needs the claim to decide
// what to render, and the server re-checks roles on every request anyway.
// Returns nil when the token is malformed or carries no roles claim.
func rolesFromToken(token string) []user.Role {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil
	}
	raw, ok := claims["roles"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []interface{}:
		roles := make([]user.Role, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, user.Role(s))
			}
		}
		return roles
	case string:
		return []user.Role{user.Role(v)}
	default:
		return nil
	}
}
