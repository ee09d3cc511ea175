package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ListingKind tells which of the known shapes a project listing had.
type ListingKind int

// Known listing shapes.
const (
	// ListingRelayed is the shape the relay replies when it could extract the projects: {"projects":[...]}.
	ListingRelayed ListingKind = iota + 1
	// ListingStreamed is the upstream's line oriented reply passed through as a JSON string. Each line is
	// "<n>:<json>" and line 1 carries {"data":{"result":[...]}}.
	ListingStreamed
	// ListingSegments is the same reply already decoded as an array: [meta, {"data":{"result":[...]}}].
	ListingSegments
)

func (k ListingKind) String() string {
	switch k {
	case ListingRelayed:
		return "relayed"
	case ListingStreamed:
		return "streamed"
	case ListingSegments:
		return "segments"
	}
	return "unknown"
}

// Listing is a decoded project listing.
type Listing struct {
	Kind     ListingKind
	Projects []Project
}

// ErrShapeMismatch is returned when a listing does not match any known shape.
var ErrShapeMismatch = errors.New("unexpected project listing format")

// segment is the payload segment of the upstream reply.
type segment struct {
	Data *struct {
		Result json.RawMessage `json:"result"`
	} `json:"data"`
}

// result returns the project array carried by the segment, ok is false if there is none.
func (s segment) result() (json.RawMessage, bool) {
	if s.Data == nil || len(s.Data.Result) == 0 || bytes.Equal(s.Data.Result, []byte("null")) {
		return nil, false
	}
	return s.Data.Result, true
}

// SegmentResult extracts the raw project array from an upstream reply made of segments, that is element 1 of a JSON
// array holding data.result. ok is false for any other document.
func SegmentResult(raw []byte) (json.RawMessage, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
		return nil, false
	}

	var seg segment
	if err := json.Unmarshal(parts[1], &seg); err != nil {
		return nil, false
	}

	return seg.result()
}

// DecodeListing decodes a listing reply of the relay. The first significant byte selects the shape and each shape is
// decoded by its own rule; anything else, or a shape without a project array, is ErrShapeMismatch.
func DecodeListing(raw []byte) (Listing, error) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return Listing{}, fmt.Errorf("%w: empty body", ErrShapeMismatch)
	}

	var (
		l      Listing
		result json.RawMessage
	)

	switch t[0] {
	case '{':
		var v struct {
			Projects json.RawMessage `json:"projects"`
		}
		if err := json.Unmarshal(t, &v); err != nil || len(v.Projects) == 0 || v.Projects[0] != '[' {
			return Listing{}, fmt.Errorf("%w: object without projects", ErrShapeMismatch)
		}
		l.Kind, result = ListingRelayed, v.Projects
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return Listing{}, fmt.Errorf("%w: %s", ErrShapeMismatch, err)
		}
		seg, ok := streamedSegment(s)
		if !ok {
			return Listing{}, fmt.Errorf("%w: no payload segment in text", ErrShapeMismatch)
		}
		l.Kind, result = ListingStreamed, seg
	case '[':
		seg, ok := SegmentResult(t)
		if !ok {
			return Listing{}, fmt.Errorf("%w: array without payload segment", ErrShapeMismatch)
		}
		l.Kind, result = ListingSegments, seg
	default:
		return Listing{}, fmt.Errorf("%w: unexpected %q", ErrShapeMismatch, t[0])
	}

	if err := json.Unmarshal(result, &l.Projects); err != nil {
		return Listing{}, fmt.Errorf("%w: %s listing: %s", ErrShapeMismatch, l.Kind, err)
	}
	if l.Projects == nil {
		l.Projects = []Project{}
	}

	return l, nil
}

// streamedSegment finds segment 1 of a line oriented reply and returns its data.result. The segment starts a line;
// if no line does, the first "1:" is used.
func streamedSegment(s string) (json.RawMessage, bool) {
	var start int
	switch {
	case strings.HasPrefix(s, "1:"):
		start = 2
	case strings.Contains(s, "\n1:"):
		start = strings.Index(s, "\n1:") + 3
	case strings.Contains(s, "1:"):
		start = strings.Index(s, "1:") + 2
	default:
		return nil, false
	}

	// only the first JSON value after the marker, later lines are other segments
	var seg segment
	if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&seg); err != nil {
		return nil, false
	}

	return seg.result()
}
