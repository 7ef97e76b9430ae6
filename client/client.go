package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/silabo/core"
	"github.com/trezcool/silabo/core/session"
)

// Client talks to the API on behalf of a single session. It injects the
// session's bearer token on every request and keeps the session in sync with
// the responses it sees.
type Client struct {
	base  *url.URL
	http  *http.Client
	state *session.State
}

// NewClient wires a Client to the given session state.
func NewClient(conf core.ClientConfig, state *session.State) (*Client, error) {
	base, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing base URL %q", conf.BaseURL)
	}
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: conf.Timeout},
		state: state,
	}, nil
}

// State returns the session state this client mutates.
func (c *Client) State() *session.State { return c.state }

// NewRequest builds a request against the API base URL. A JSON body is
// marshaled when body is non-nil, and the current session token (if any) is
// attached as a bearer token.
func (c *Client) NewRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing path %q", path)
	}

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling request body")
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), buf)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if sess := c.state.Session(); sess.User != nil && sess.User.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.User.Token)
	}
	return req, nil
}

// Do executes the request and decodes a successful JSON response into out
// (when out is non-nil). Failures come back as *APIError.
//
// An HTTP 401 on ANY request logs the session out on the spot, whatever the
// endpoint: the token is no longer honored by the server and keeping the
// account around would only misrepresent reality. Callers layer their own
// user-facing message on top afterwards.
func (c *Client) Do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return newNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.state.Logout()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body errorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return newAPIError(resp.StatusCode, body)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}
