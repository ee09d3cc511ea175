// Package relay implements the relay microservice.
//
// The relay exposes a small RESTful API to manage the projects of one team and forwards every call to the upstream
// project-management API, attaching the fixed credentials the upstream expects. It keeps no state: each request is
// one upstream call and its reply.
package relay

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tarancss/adminrelay/lib/upstream"
)

// Upstream is the client the relay forwards requests to. *upstream.Client implements it.
type Upstream interface {
	Send(ctx context.Context, r upstream.Request) (*upstream.Response, error)
	Post(ctx context.Context, body []byte) (*upstream.Response, error)
}

// Relay contains the data necessary to deliver the service
type Relay struct {
	team    string   // team whose projects are managed
	up      Upstream // upstream client
	origins []string // CORS allowed origins
	m       *metrics

	mu      sync.Mutex
	s       *http.Server  // http server
	ss      *http.Server  // https server
	stopped bool          // Stop was called, no server may start
	sc      chan struct{} // closed when the servers have been shut down
	once    sync.Once
}

// New returns a pointer to a new Relay service. Metrics are registered in reg, which may be nil.
func New(teamID string, up Upstream, origins []string, reg prometheus.Registerer) *Relay {
	return &Relay{
		team:    teamID,
		up:      up,
		origins: origins,
		m:       newMetrics(reg),
		sc:      make(chan struct{}),
	}
}

// Stop shuts down the http servers implementing the RESTful API. It can be called more than once, and before Init, in
// which case Init starts nothing.
func (rl *Relay) Stop() {
	rl.once.Do(func() {
		rl.mu.Lock()
		rl.stopped = true
		s, ss := rl.s, rl.ss
		rl.mu.Unlock()

		if s != nil {
			if err := s.Shutdown(context.Background()); err != nil {
				log.Printf("Error in http server shutdown:%v", err)
			}
		}
		if ss != nil {
			if err := ss.Shutdown(context.Background()); err != nil {
				log.Printf("Error in https server shutdown:%v", err)
			}
		}
		close(rl.sc) // shutdowns have finished
	})
}
