package relay

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const timeout = 15

// Handler returns the http handler serving the RESTful API, with CORS and request ids.
func (rl *Relay) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID)
	r.HandleFunc("/", rl.homeHandler)
	r.HandleFunc("/api/create-project", rl.createHandler).Methods(http.MethodPost)                      // create a project
	r.HandleFunc("/api/list-projects", rl.listHandler).Methods(http.MethodGet)                          // list all projects
	r.HandleFunc("/api/delete-project/{projectId}", rl.deleteHandler).Methods(http.MethodDelete)        // delete a project
	r.HandleFunc("/api/update-project-settings/{projectId}", rl.updateHandler).Methods(http.MethodPut) // bundler settings

	cors := handlers.CORS(
		handlers.AllowedOrigins(rl.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-Id"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
	)

	return cors(r)
}

// Init sets up and starts the http/https server to service the RESTful API. If sslPort, sslCert and sslKey are
// informed, it will also start an https (TLS) server on the specified endpoint. Init returns once Stop has been called.
func (rl *Relay) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	var wg sync.WaitGroup

	h := rl.Handler()

	rl.mu.Lock()
	if rl.stopped {
		rl.mu.Unlock()
		log.Print("Relay stopped before the API servers were started")

		return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
	}
	// start http server
	if port != "" {
		rl.s = &http.Server{
			Handler:      h,
			Addr:         endpoint + ":" + port,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()
			if e := s.ListenAndServe(); !errors.Is(e, http.ErrServerClosed) {
				log.Printf("http server: %v", e)
				err = e
			}
		}(rl.s)

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		rl.ss = &http.Server{
			Handler:      h,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()
			if e := s.ListenAndServeTLS(sslCert, sslKey); !errors.Is(e, http.ErrServerClosed) {
				log.Printf("https server: %v", e)
				errTLS = e
			}
		}(rl.ss)

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	rl.mu.Unlock()

	// wait for servers to be shutdown
	<-rl.sc
	wg.Wait()

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}
