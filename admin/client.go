// Package admin is the client side of the relay: a typed client for its RESTful API and the Console, the state of an
// interactive project-management session (project list, create and edit forms, delete confirmation and the result
// banner).
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tarancss/adminrelay/lib/project"
	"github.com/tarancss/adminrelay/lib/upstream"
)

// DefaultTimeout bounds every call to the relay.
const DefaultTimeout = 30 * time.Second

// ErrBadRelayURL is returned by NewClient when the relay url cannot be used.
var ErrBadRelayURL = errors.New("invalid relay url")

// RelayError is returned when the relay replies with a non-2xx status.
type RelayError struct {
	Status  int
	Message string          // error reported by the relay
	Data    json.RawMessage // upstream body echoed by the relay, if any
}

func (e *RelayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay replied status %d", e.Status)
	}
	return e.Message
}

// Client calls the relay API.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient returns a client of the relay listening at baseURL, e.g. http://localhost:3000.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadRelayURL, baseURL)
	}

	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// do sends a request to the relay and returns the body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, in interface{}) ([]byte, error) {
	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		re := &RelayError{Status: res.StatusCode}

		var e struct {
			Error string          `json:"error"`
			Data  json.RawMessage `json:"data"`
		}
		if json.Unmarshal(out, &e) == nil {
			re.Message, re.Data = e.Error, e.Data
		}

		return nil, re
	}

	return out, nil
}

// ListProjects returns the projects of the team. A reply in none of the known listing shapes is
// project.ErrShapeMismatch.
func (c *Client) ListProjects(ctx context.Context) ([]project.Project, error) {
	b, err := c.do(ctx, http.MethodGet, "/api/list-projects", nil)
	if err != nil {
		return nil, err
	}

	l, err := project.DecodeListing(b)
	if err != nil {
		return nil, err
	}

	return l.Projects, nil
}

// CreateProject sends the create request through the relay and returns the upstream reply.
func (c *Client) CreateProject(ctx context.Context, r upstream.Request) (json.RawMessage, error) {
	b, err := c.do(ctx, http.MethodPost, "/api/create-project", r)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// DeleteProject deletes a project. name is only used by the relay in the result message.
func (c *Client) DeleteProject(ctx context.Context, id, name string) (project.OperationResult, error) {
	return c.result(ctx, http.MethodDelete, "/api/delete-project/", id, name, nil)
}

// UpdateSettings replaces the bundler settings of a project.
func (c *Client) UpdateSettings(ctx context.Context, id, name string, s project.Settings) (project.OperationResult,
	error) {
	return c.result(ctx, http.MethodPut, "/api/update-project-settings/", id, name, s)
}

func (c *Client) result(ctx context.Context, method, prefix, id, name string,
	in interface{}) (project.OperationResult, error) {
	var r project.OperationResult

	path := prefix + url.PathEscape(id) + "?name=" + url.QueryEscape(name)

	b, err := c.do(ctx, method, path, in)
	if err != nil {
		return r, err
	}

	if err = json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("decoding result: %w", err)
	}

	return r, nil
}
