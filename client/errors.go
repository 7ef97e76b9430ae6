package client

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed API call.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindServer
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// APIError is any failure of an API call: a non-2xx response or no response
// at all. Message is the user-facing string (also mirrored into the session
// error); Detail carries whatever the server said.
type APIError struct {
	Kind       Kind
	StatusCode int // 0 when no response was received
	Message    string
	Detail     string
	Err        error // transport error, when Kind is KindNetwork
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

const noResponseMsg = "No response from server. Please check your internet connection."

// errorBody is the error payload shape the API (and its predecessors) emit.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (b errorBody) detail() string {
	if b.Detail != "" {
		return b.Detail
	}
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

func classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

func newNetworkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: noResponseMsg, Err: err}
}

func newAPIError(status int, body errorBody) *APIError {
	return &APIError{
		Kind:       classify(status),
		StatusCode: status,
		Message:    body.detail(),
		Detail:     body.detail(),
	}
}

// Per-operation user-facing messages. The strings are part of the UX contract
// and must not drift.

func registerMessage(err *APIError) string {
	switch err.StatusCode {
	case http.StatusBadRequest:
		switch {
		case strings.Contains(err.Detail, "conflict"), strings.Contains(err.Detail, "already registered"), strings.Contains(err.Detail, "already exists"):
			return "This email is already registered. Please use a different email or try logging in."
		case strings.Contains(err.Detail, "validation"):
			return "Please check your input. All fields are required and password must be at least 8 characters."
		default:
			if err.Detail != "" {
				return err.Detail
			}
			return "Invalid registration data. Please check your input."
		}
	case http.StatusConflict:
		return "This email is already registered. Please use a different email or try logging in."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case 0:
		return noResponseMsg
	default:
		if err.Detail != "" {
			return err.Detail
		}
		return "Registration failed. Please try again."
	}
}

func loginMessage(err *APIError) string {
	switch err.StatusCode {
	case http.StatusUnauthorized:
		return "Invalid email or password. Please try again."
	case http.StatusBadRequest:
		return "Please check your input. Email and password are required."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case 0:
		return noResponseMsg
	default:
		if err.Detail != "" {
			return err.Detail
		}
		return "Login failed. Please try again."
	}
}

func updateProfileMessage(err *APIError) string {
	switch err.StatusCode {
	case http.StatusBadRequest:
		return "Please check your input. All fields are required."
	case http.StatusUnauthorized:
		return "Your session has expired. Please log in again."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case 0:
		return noResponseMsg
	default:
		if err.Detail != "" {
			return err.Detail
		}
		return "Profile update failed. Please try again."
	}
}

func changePasswordMessage(err *APIError) string {
	switch err.StatusCode {
	case http.StatusBadRequest:
		return "Please check your input. All fields are required."
	case http.StatusUnauthorized:
		return "Current password is incorrect."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case 0:
		return noResponseMsg
	default:
		if err.Detail != "" {
			return err.Detail
		}
		return "Password change failed. Please try again."
	}
}

func forgotPasswordMessage(err *APIError) string {
	switch err.StatusCode {
	case http.StatusNotFound:
		return "No account found with this email address."
	case http.StatusBadRequest:
		return "Please enter a valid email address."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case 0:
		return noResponseMsg
	default:
		if err.Detail != "" {
			return err.Detail
		}
		return "Failed to send reset email. Please try again."
	}
}

func resetPasswordMessage(err *APIError) string {
	if err.Detail != "" {
		return err.Detail
	}
	return "Failed to reset password"
}
