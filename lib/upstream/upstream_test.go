package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captured holds what the mock upstream received.
type captured struct {
	host, action, cookie, ctype string
	body                        []byte
}

func mockUpstream(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.host = r.Host
		c.action = r.Header.Get("Next-Action")
		c.cookie = r.Header.Get("Cookie")
		c.ctype = r.Header.Get("Content-Type")
		c.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestPostForwardsHeadersAndBody(t *testing.T) {
	srv, got := mockUpstream(t, http.StatusOK, `{"ok":true}`)
	c, err := New(srv.URL, "thirdweb.com", "tok", "tw_session=1")
	require.NoError(t, err)

	payload := []byte(`[{"pathname":"/v1/teams/t/projects","method":"POST","headers":{}}]`)
	res, err := c.Post(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"ok":true}`, string(res.Payload()))
	assert.Equal(t, payload, got.body)
	assert.Equal(t, "thirdweb.com", got.host)
	assert.Equal(t, "tok", got.action)
	assert.Equal(t, "tw_session=1", got.cookie)
	assert.Equal(t, "application/json", got.ctype)
}

func TestSendEncodesDirectives(t *testing.T) {
	srv, got := mockUpstream(t, http.StatusOK, `[]`)
	c, err := New(srv.URL, "", "", "")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), NewRequest(http.MethodGet, "/v1/teams/t/projects", ""))
	require.NoError(t, err)

	assert.JSONEq(t, `[{"pathname":"/v1/teams/t/projects","method":"GET","headers":{"Content-Type":"application/json"}}]`,
		string(got.body))
}

func TestPostUpstreamError(t *testing.T) {
	srv, _ := mockUpstream(t, http.StatusUnauthorized, `{"message":"bad cookie"}`)
	c, _ := New(srv.URL, "", "", "")

	_, err := c.Post(context.Background(), []byte(`[]`))

	var ue *Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
	assert.Equal(t, "Request failed with status code 401", ue.Error())
	assert.JSONEq(t, `{"message":"bad cookie"}`, string(ue.Data()))
}

func TestPostNoResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := New(url, "", "", "")
	_, err := c.Post(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("", "", "", "")
	assert.ErrorIs(t, err, ErrBadURL)
}

func TestResponseText(t *testing.T) {
	cases := []struct {
		name string
		body string
		text string
		ok   bool
	}{
		{"plain", "0:{}\n1:404 not found", "0:{}\n1:404 not found", true},
		{"jsonString", `"Error 404"`, "Error 404", true},
		{"empty", "", "", true},
		{"object", `{"status":404}`, "", false},
		{"array", `[0,{"data":{}}]`, "", false},
	}
	for _, c := range cases {
		r := &Response{Body: []byte(c.body)}
		s, ok := r.Text()
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.text, s, c.name)
	}
}

func TestResponsePayload(t *testing.T) {
	assert.Equal(t, `"0:{}\n1:{\"a\":1}"`, string((&Response{Body: []byte("0:{}\n1:{\"a\":1}")}).Payload()))
	assert.Equal(t, `{"a":1}`, string((&Response{Body: []byte(" {\"a\":1}\n")}).Payload()))
	assert.Equal(t, `""`, string((&Response{}).Payload()))
}
