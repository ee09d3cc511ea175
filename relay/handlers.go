package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tarancss/adminrelay/lib/project"
	"github.com/tarancss/adminrelay/lib/upstream"
)

// Errors returned to client requests.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoProject  = errors.New("undefined project - missing in uri")
)

// Response defines the data structure of the home reply.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// errorReply is the body replied when a request fails. Data echoes the upstream body, if any.
type errorReply struct {
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// listReply is the listing once the projects could be extracted from the upstream reply.
type listReply struct {
	Projects json.RawMessage `json:"projects"`
}

// Operations, used in logs and metrics.
const (
	opCreate = "create"
	opList   = "list"
	opDelete = "delete"
	opUpdate = "update"
)

// reply writes v as the JSON body of the response.
func reply(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)

	enc := json.NewEncoder(rw)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// replyError maps err to the status and body replied to the client: upstream errors keep the upstream status and
// echo its body, malformed requests are 400 and anything else is 500.
func replyError(rw http.ResponseWriter, r *http.Request, err error) {
	var ue *upstream.Error

	switch {
	case errors.As(err, &ue):
		reply(rw, ue.Status, errorReply{Error: ue.Error(), Data: ue.Data()})
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrNoProject), errors.Is(err, project.ErrNoMaxSpend):
		reply(rw, http.StatusBadRequest, errorReply{Error: err.Error()})
	default:
		reply(rw, http.StatusInternalServerError, errorReply{Error: err.Error()})
	}

	log.Printf("httpreq id=%s %s %s err:%v", RequestID(r.Context()), r.Method, r.RequestURI, err)
}

// call performs one upstream call, logging it and recording its outcome.
func (rl *Relay) call(ctx context.Context, op, msg string,
	fn func(context.Context) (*upstream.Response, error)) (*upstream.Response, error) {
	log.Printf("[%s] %s", op, msg)

	done := rl.m.observe(op)

	res, err := fn(ctx)
	done(err)

	if err != nil {
		log.Printf("[%s] Error: %v", op, err)

		return nil, err
	}

	log.Printf("[%s] Response received", op)

	return res, nil
}

// notFound is the only failure signal the upstream gives for deletes and updates: a text reply mentioning 404.
func notFound(res *upstream.Response) bool {
	text, ok := res.Text()
	return ok && strings.Contains(text, "404")
}

// projectParams returns the project id from the uri and its name from the query, "Unknown" when not given.
func projectParams(r *http.Request) (id, name string, err error) {
	id, ok := mux.Vars(r)["projectId"]
	if !ok || id == "" {
		return "", "", ErrNoProject
	}

	if name = r.URL.Query().Get("name"); name == "" {
		name = "Unknown"
	}

	return id, name, nil
}

// decodeSettings reads the settings of an update request. maxSpend must be present and not null, an empty string is
// passed on.
func decodeSettings(rd io.Reader) (project.Settings, error) {
	var s project.Settings

	body, err := io.ReadAll(rd)
	if err != nil {
		return s, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	var given struct {
		MaxSpend json.RawMessage `json:"maxSpend"`
	}
	if err = json.Unmarshal(body, &given); err != nil {
		return s, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if len(given.MaxSpend) == 0 || string(given.MaxSpend) == "null" {
		return s, project.ErrNoMaxSpend
	}

	if err = json.Unmarshal(body, &s); err != nil {
		return s, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	return s, nil
}

// homeHandler just replies a welcome message to the client.
func (rl *Relay) homeHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, http.StatusOK, Response{Body: "Hello, this is your project relay!"})
}

// createHandler forwards the request body to the upstream as is and replies the upstream body unchanged.
func (rl *Relay) createHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res *upstream.Response

	defer func() {
		if err != nil {
			replyError(rw, r, err)

			return
		}

		reply(rw, http.StatusOK, res.Payload())
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrBadRequest, err)

		return
	}

	log.Printf("[%s] Received request: %s", opCreate, body)

	res, err = rl.call(r.Context(), opCreate, "Creating project", func(ctx context.Context) (*upstream.Response, error) {
		return rl.up.Post(ctx, body)
	})
}

// listHandler lists the projects of the team. When the upstream reply carries the project array where expected,
// only the array is replied as {"projects":[...]}; otherwise the upstream body is replied as is.
func (rl *Relay) listHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res *upstream.Response

	defer func() {
		if err != nil {
			replyError(rw, r, err)

			return
		}

		if projects, ok := project.SegmentResult(res.Body); ok {
			reply(rw, http.StatusOK, listReply{Projects: projects})

			return
		}

		log.Printf("[%s] Projects fetched with unexpected format: %s", opList, res.Body)
		reply(rw, http.StatusOK, res.Payload())
	}()

	res, err = rl.call(r.Context(), opList, "Fetching all projects", func(ctx context.Context) (*upstream.Response, error) {
		return rl.up.Send(ctx, project.ListRequest(rl.team))
	})
}

// deleteHandler deletes the project in the uri and replies the synthesized result.
func (rl *Relay) deleteHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var result project.OperationResult

	defer func() {
		if err != nil {
			replyError(rw, r, err)

			return
		}

		reply(rw, http.StatusOK, result)
	}()

	id, name, err := projectParams(r)
	if err != nil {
		return
	}

	res, err := rl.call(r.Context(), opDelete, fmt.Sprintf("Deleting project with ID: %s, name: %s", id, name),
		func(ctx context.Context) (*upstream.Response, error) {
			return rl.up.Send(ctx, project.DeleteRequest(rl.team, id))
		})
	if err != nil {
		return
	}

	result = project.OperationResult{
		Success:   true,
		Message:   fmt.Sprintf(`Project "%s" deleted successfully`, name),
		ProjectID: id,
	}
	if notFound(res) {
		result.Success = false
		result.Message = fmt.Sprintf(`Project "%s" not found or already deleted`, name)
	}
}

// updateHandler writes the bundler settings in the request body to the project in the uri and replies the
// synthesized result.
func (rl *Relay) updateHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var result project.OperationResult

	defer func() {
		if err != nil {
			replyError(rw, r, err)

			return
		}

		reply(rw, http.StatusOK, result)
	}()

	id, name, err := projectParams(r)
	if err != nil {
		return
	}

	settings, err := decodeSettings(r.Body)
	if err != nil {
		return
	}

	req, err := project.UpdateRequest(rl.team, id, settings)
	if err != nil {
		return
	}

	res, err := rl.call(r.Context(), opUpdate, fmt.Sprintf("Updating settings for project with ID: %s, name: %s", id, name),
		func(ctx context.Context) (*upstream.Response, error) {
			return rl.up.Send(ctx, req)
		})
	if err != nil {
		return
	}

	result = project.OperationResult{
		Success:   true,
		Message:   fmt.Sprintf(`Settings for project "%s" updated successfully`, name),
		ProjectID: id,
	}
	if notFound(res) {
		result.Success = false
		result.Message = fmt.Sprintf(`Project "%s" not found`, name)
	}
}
