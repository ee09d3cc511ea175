// Package upstream implements the client of the project-management API. The API exposes one POST endpoint that takes an
// array of directives, each describing the REST call the upstream performs on behalf of the caller. Every call carries
// the fixed action token, host and session cookie headers.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
)

// Directive is the description of one upstream REST call.
type Directive struct {
	Pathname string            `json:"pathname"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers"`
	Body     string            `json:"body,omitempty"` // JSON document encoded as a string
}

// Request is the payload accepted by the upstream endpoint. The upstream requires an array even though the relay only
// ever sends one directive.
type Request []Directive

// NewRequest returns a one-directive request with a JSON content type.
func NewRequest(method, pathname, body string) Request {
	return Request{{
		Pathname: pathname,
		Method:   method,
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     body,
	}}
}

// Errors returned by the client.
var (
	ErrNoResponse = errors.New("no response received from upstream")
	ErrBadURL     = errors.New("invalid upstream url")
)

// Error is returned when the upstream replies with a non-2xx status. Body holds the upstream reply untouched.
type Error struct {
	Status int
	Body   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("Request failed with status code %d", e.Status)
}

// Data returns the upstream body as JSON (see Response.Payload).
func (e *Error) Data() json.RawMessage {
	return payload(e.Body)
}

// Response is a 2xx upstream reply.
type Response struct {
	Status int
	Body   []byte
}

// Payload returns the body as a JSON document. Bodies that are not valid JSON are encoded as a JSON string, so the
// caller always gets something it can embed in a JSON reply.
func (r *Response) Payload() json.RawMessage {
	return payload(r.Body)
}

// Text returns the body as text when the upstream did not reply a JSON object, array, number or literal. A JSON
// string is decoded. ok is false for structured bodies.
func (r *Response) Text() (s string, ok bool) {
	t := bytes.TrimSpace(r.Body)
	if len(t) == 0 {
		return "", true
	}
	if !json.Valid(t) {
		return string(r.Body), true
	}
	if t[0] == '"' {
		_ = json.Unmarshal(t, &s)
		return s, true
	}
	return "", false
}

func payload(b []byte) json.RawMessage {
	if t := bytes.TrimSpace(b); len(t) > 0 && json.Valid(t) {
		return json.RawMessage(t)
	}
	s, _ := json.Marshal(string(b))
	return s
}

// Client posts requests to the upstream endpoint. It holds no state besides its configuration so it is safe for
// concurrent use.
type Client struct {
	url    string
	host   string
	token  string
	cookie string
	hc     *http.Client
}

// New returns a client for the upstream at url. host overrides the Host header when the upstream is reached through
// a different address (ie. in tests). token and cookie are sent on every call as the Next-Action and Cookie headers.
func New(url, host, token, cookie string) (*Client, error) {
	if url == "" {
		return nil, ErrBadURL
	}
	return &Client{url: url, host: host, token: token, cookie: cookie, hc: &http.Client{}}, nil
}

// Send marshals r and posts it upstream.
func (c *Client) Send(ctx context.Context, r Request) (*Response, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("cannot encode upstream request: %w", err)
	}
	return c.Post(ctx, body)
}

// Post sends body to the upstream as is. A non-2xx reply is returned as *Error, a transport failure wraps
// ErrNoResponse.
func (c *Client) Post(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadURL, err)
	}
	req.Header.Set("Next-Action", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", c.cookie)
	if c.host != "" {
		req.Host = c.host
	}

	res, err := c.hc.Do(req)
	if err != nil {
		log.Printf("[upstream] Error: %v", err)
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %s", ErrNoResponse, err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		log.Printf("[upstream] Response status:%d data:%s headers:%v", res.StatusCode, data, res.Header)
		return nil, &Error{Status: res.StatusCode, Body: data}
	}

	return &Response{Status: res.StatusCode, Body: data}, nil
}
