package relay

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/adminrelay/lib/project"
	"github.com/tarancss/adminrelay/lib/upstream"
)

const team = "team_1"

// mockUpstream replies every call with the same status and body and keeps what it received.
type mockUpstream struct {
	mu     sync.Mutex
	status int
	reply  string
	calls  int
	body   []byte
	header http.Header
}

func (m *mockUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.body, _ = io.ReadAll(r.Body)
	m.header = r.Header.Clone()

	w.WriteHeader(m.status)
	_, _ = w.Write([]byte(m.reply))
}

// directive returns the single directive the upstream received.
func (m *mockUpstream) directive(t *testing.T) upstream.Directive {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var req upstream.Request
	require.NoError(t, json.Unmarshal(m.body, &req))
	require.Len(t, req, 1)

	return req[0]
}

// setup starts a mock upstream and a relay in front of it.
func setup(t *testing.T, status int, reply string) (string, *mockUpstream, *prometheus.Registry) {
	t.Helper()

	m := &mockUpstream{status: status, reply: reply}
	up := httptest.NewServer(m)
	t.Cleanup(up.Close)

	c, err := upstream.New(up.URL, "thirdweb.com", "action-token", "tw_session=xyz")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rl := New(team, c, []string{"*"}, reg)

	srv := httptest.NewServer(rl.Handler())
	t.Cleanup(srv.Close)

	return srv.URL, m, reg
}

// do makes a request to the relay and returns the response with its body read.
func do(t *testing.T, method, uri, body string, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, uri, rd)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res, b
}

const listed = `[{"a":"$@1"},{"data":{"result":[{"id":"proj1","name":"Game A","domains":["a.io"],"services":[],"createdAt":"2025-01-01"}]}}]`

func TestAPI(t *testing.T) {
	cases := []struct {
		name, method, path, body string // case name, http method, path and body sent to the relay
		upStatus                 int    // upstream status
		upReply                  string // upstream body
		status                   int    // http status code expected
		resExp                   string // JSON body expected
	}{
		{"home_0", http.MethodGet, "/", "", 200, "", 200, `{"body":"Hello, this is your project relay!"}`},
		{"create_0", http.MethodPost, "/api/create-project", `[{"pathname":"/v1/teams/team_1/projects","method":"POST"}]`,
			200, `{"id":"proj9","name":"Game C"}`, 200, `{"id":"proj9","name":"Game C"}`},
		{"create_1", http.MethodPost, "/api/create-project", `[]`, 200, "0:{}\n1:{\"data\":{}}", 200,
			`"0:{}\n1:{\"data\":{}}"`},
		{"create_2", http.MethodGet, "/api/create-project", "", 200, "", 405, ``},
		{"list_0", http.MethodGet, "/api/list-projects", "", 200, listed, 200,
			`{"projects":[{"id":"proj1","name":"Game A","domains":["a.io"],"services":[],"createdAt":"2025-01-01"}]}`},
		{"list_1", http.MethodGet, "/api/list-projects", "", 200, "0:{}\n1:{\"data\":{\"result\":[]}}", 200,
			`"0:{}\n1:{\"data\":{\"result\":[]}}"`},
		{"list_2", http.MethodGet, "/api/list-projects", "", 200, `{"unexpected":true}`, 200, `{"unexpected":true}`},
		{"delete_0", http.MethodDelete, "/api/delete-project/proj1?name=Game%20A", "", 200, `0:{"ok":true}`, 200,
			`{"success":true,"message":"Project \"Game A\" deleted successfully","projectId":"proj1"}`},
		{"delete_1", http.MethodDelete, "/api/delete-project/proj1?name=Game%20A", "", 200, `0:["$@1"]` + "\n1:E{\"digest\":\"404\"}", 200,
			`{"success":false,"message":"Project \"Game A\" not found or already deleted","projectId":"proj1"}`},
		{"delete_2", http.MethodDelete, "/api/delete-project/proj1", "", 200, `{"status":404}`, 200,
			`{"success":true,"message":"Project \"Unknown\" deleted successfully","projectId":"proj1"}`},
		{"update_0", http.MethodPut, "/api/update-project-settings/proj1?name=Game%20A",
			`{"maxSpend":"50","allowedContractAddresses":[],"allowedWallets":["0xAA"],"blockedWallets":[]}`, 200, `0:{}`, 200,
			`{"success":true,"message":"Settings for project \"Game A\" updated successfully","projectId":"proj1"}`},
		{"update_1", http.MethodPut, "/api/update-project-settings/proj1?name=Game%20A",
			`{"maxSpend":50,"allowedContractAddresses":null,"allowedWallets":null,"blockedWallets":null}`, 200, `"404"`, 200,
			`{"success":false,"message":"Project \"Game A\" not found","projectId":"proj1"}`},
		{"update_2", http.MethodPut, "/api/update-project-settings/proj1", `{"maxSpend":`, 200, "", 400, ``},
		{"update_3", http.MethodPut, "/api/update-project-settings/proj1", `{"allowedWallets":[]}`, 200, "", 400,
			`{"error":"maxSpend is required"}`},
		{"update_4", http.MethodPut, "/api/update-project-settings/proj1", `{"maxSpend":null,"allowedWallets":[]}`, 200, "", 400,
			`{"error":"maxSpend is required"}`},
		{"update_5", http.MethodPut, "/api/update-project-settings/proj1?name=Game%20A", `{"maxSpend":""}`, 200, `0:{}`, 200,
			`{"success":true,"message":"Settings for project \"Game A\" updated successfully","projectId":"proj1"}`},
		{"upstream_0", http.MethodGet, "/api/list-projects", "", 401, `{"message":"session expired"}`, 401,
			`{"error":"Request failed with status code 401","data":{"message":"session expired"}}`},
		{"upstream_1", http.MethodDelete, "/api/delete-project/proj1", "", 500, `Internal Server Error`, 500,
			`{"error":"Request failed with status code 500","data":"Internal Server Error"}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			uri, _, _ := setup(t, c.upStatus, c.upReply)

			res, b := do(t, c.method, uri+c.path, c.body, nil)

			assert.Equal(t, c.status, res.StatusCode)
			if c.resExp != "" {
				assert.JSONEq(t, c.resExp, string(b))
			}
		})
	}
}

func TestCreateForwardsBodyVerbatim(t *testing.T) {
	uri, m, _ := setup(t, 200, `{}`)

	payload := `[{"pathname":"/v1/teams/team_1/projects","method":"POST","headers":{"Content-Type":"application/json"},` +
		`"body":"{\"name\":\"Game C\",\"domains\":[\"c.io\"]}"}]`
	_, _ = do(t, http.MethodPost, uri+"/api/create-project", payload, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, payload, string(m.body))
	assert.Equal(t, "action-token", m.header.Get("Next-Action"))
	assert.Equal(t, "tw_session=xyz", m.header.Get("Cookie"))
}

func TestListDirective(t *testing.T) {
	uri, m, _ := setup(t, 200, listed)

	_, _ = do(t, http.MethodGet, uri+"/api/list-projects", "", nil)

	d := m.directive(t)
	assert.Equal(t, "/v1/teams/team_1/projects", d.Pathname)
	assert.Equal(t, http.MethodGet, d.Method)
	assert.Equal(t, "application/json", d.Headers["Content-Type"])
	assert.Empty(t, d.Body)
}

func TestListIdempotent(t *testing.T) {
	uri, _, _ := setup(t, 200, listed)

	_, first := do(t, http.MethodGet, uri+"/api/list-projects", "", nil)
	_, second := do(t, http.MethodGet, uri+"/api/list-projects", "", nil)

	assert.Equal(t, first, second)
}

func TestDeleteDirective(t *testing.T) {
	uri, m, _ := setup(t, 200, `0:{}`)

	_, _ = do(t, http.MethodDelete, uri+"/api/delete-project/proj1?name=Game%20A", "", nil)

	d := m.directive(t)
	assert.Equal(t, "/v1/teams/team_1/projects/proj1", d.Pathname)
	assert.Equal(t, http.MethodDelete, d.Method)
}

func TestUpdateDirective(t *testing.T) {
	uri, m, _ := setup(t, 200, `0:{}`)

	_, _ = do(t, http.MethodPut, uri+"/api/update-project-settings/proj1?name=Game%20A",
		`{"maxSpend":"50","allowedContractAddresses":[],"allowedWallets":["0xAA"],"blockedWallets":[""]}`, nil)

	d := m.directive(t)
	assert.Equal(t, "/v1/teams/team_1/projects/proj1", d.Pathname)
	assert.Equal(t, http.MethodPut, d.Method)

	var doc struct {
		Services []json.RawMessage `json:"services"`
	}
	require.NoError(t, json.Unmarshal([]byte(d.Body), &doc))
	require.Len(t, doc.Services, 8)

	var b project.BundlerService
	require.NoError(t, json.Unmarshal(doc.Services[0], &b))
	assert.Equal(t, project.Bundler, b.Name)
	assert.Equal(t, project.Amount("50"), b.Limits.Global.MaxSpend)
	assert.Equal(t, []string{"0xAA"}, b.AllowedWallets)
	assert.Equal(t, []string{}, b.BlockedWallets)
	assert.Equal(t, []string{}, b.AllowedContractAddresses)
	assert.Equal(t, []int64{4202}, b.AllowedChainIDs)
}

func TestUpdateEmptyMaxSpend(t *testing.T) {
	uri, m, _ := setup(t, 200, `0:{}`)

	_, _ = do(t, http.MethodPut, uri+"/api/update-project-settings/proj1", `{"maxSpend":""}`, nil)

	d := m.directive(t)
	assert.Contains(t, d.Body, `"maxSpend":""`)
}

func TestNoResponse(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	url := up.URL
	up.Close()

	c, err := upstream.New(url, "", "", "")
	require.NoError(t, err)

	srv := httptest.NewServer(New(team, c, nil, nil).Handler())
	defer srv.Close()

	res, b := do(t, http.MethodGet, srv.URL+"/api/list-projects", "", nil)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	var e struct {
		Error string          `json:"error"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &e))
	assert.Contains(t, e.Error, upstream.ErrNoResponse.Error())
	assert.Empty(t, e.Data)
}

func TestRequestID(t *testing.T) {
	uri, _, _ := setup(t, 200, "")

	res, _ := do(t, http.MethodGet, uri+"/", "", map[string]string{"X-Request-Id": "abc-123"})
	assert.Equal(t, "abc-123", res.Header.Get("X-Request-Id"))

	res, _ = do(t, http.MethodGet, uri+"/", "", nil)
	assert.Len(t, res.Header.Get("X-Request-Id"), 36)
}

func TestCORS(t *testing.T) {
	uri, m, _ := setup(t, 200, listed)

	res, _ := do(t, http.MethodGet, uri+"/api/list-projects", "", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	res, _ = do(t, http.MethodOptions, uri+"/api/update-project-settings/proj1", "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": http.MethodPut,
	})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)

	// the preflight never reaches the upstream
	m.mu.Lock()
	assert.Equal(t, 1, m.calls)
	m.mu.Unlock()
}

func TestMetrics(t *testing.T) {
	uri, _, reg := setup(t, 200, listed)

	_, _ = do(t, http.MethodGet, uri+"/api/list-projects", "", nil)
	_, _ = do(t, http.MethodGet, uri+"/api/list-projects", "", nil)
	_, _ = do(t, http.MethodDelete, uri+"/api/delete-project/p", "", nil)

	n, err := testutil.GatherAndCount(reg, "relay_upstream_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n) // two label sets: list/ok and delete/ok
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, outcomeOK, outcome(nil))
	assert.Equal(t, outcomeUpstream, outcome(&upstream.Error{Status: 502}))
	assert.Equal(t, outcomeNoResponse, outcome(upstream.ErrNoResponse))
	assert.Equal(t, outcomeError, outcome(ErrBadRequest))

	m := newMetrics(nil)
	m.observe(opList)(nil)
	m.observe(opList)(nil)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.calls.WithLabelValues(opList, outcomeOK)))
}

func TestInitStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	c, err := upstream.New("http://127.0.0.1:1", "", "", "")
	require.NoError(t, err)
	rl := New(team, c, nil, nil)

	done := make(chan string)
	go func() { done <- rl.Init("127.0.0.1", strconv.Itoa(port), "", "", "") }()

	// wait for the server to come up
	require.Eventually(t, func() bool {
		res, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	rl.Stop()
	rl.Stop()

	select {
	case s := <-done:
		assert.Equal(t, "shutdown http server:<nil>, https server:<nil>", s)
	case <-time.After(2 * time.Second):
		t.Fatal("Init did not return after Stop")
	}
}

func TestStopBeforeInit(t *testing.T) {
	c, err := upstream.New("http://127.0.0.1:1", "", "", "")
	require.NoError(t, err)
	rl := New(team, c, nil, nil)

	rl.Stop()

	done := make(chan string)
	go func() { done <- rl.Init("127.0.0.1", "0", "", "", "") }()

	select {
	case s := <-done:
		assert.Equal(t, "shutdown http server:<nil>, https server:<nil>", s)
	case <-time.After(2 * time.Second):
		t.Fatal("Init started serving after Stop")
	}
}
