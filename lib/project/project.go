// Package project defines the project model managed through the upstream API and the helpers shared by the relay and
// the admin client: the empty-list normalization, the request builders for every operation and the decoder for the
// different shapes a project listing can take.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Service names known to the upstream.
const (
	Bundler         = "bundler"
	Chainsaw        = "chainsaw"
	EmbeddedWallets = "embeddedWallets"
	Insight         = "insight"
	Pay             = "pay"
	Relayer         = "relayer"
	RPC             = "rpc"
	Storage         = "storage"
)

// Project is the upstream view of a project. The relay never stores it.
type Project struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Domains  []string  `json:"domains"`
	Services []Service `json:"services"`
}

// Service is one service descriptor of a project. Only the name is decoded eagerly, the full descriptor is kept so
// that service specific fields can be decoded on demand (see Decode) and are re-encoded untouched.
type Service struct {
	Name string
	raw  json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Service) UnmarshalJSON(b []byte) error {
	var head struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}

	s.Name = head.Name
	s.raw = buf.Bytes()

	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Service) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(struct {
		Name string `json:"name"`
	}{s.Name})
}

// Decode unmarshals the full descriptor into v.
func (s Service) Decode(v interface{}) error {
	if len(s.raw) == 0 {
		return ErrNoDescriptor
	}
	return json.Unmarshal(s.raw, v)
}

// Errors returned by the package.
var (
	ErrNoDescriptor = errors.New("service descriptor not available")
	ErrNoMaxSpend   = errors.New("maxSpend is required")
	ErrBadAmount    = errors.New("maxSpend must be a string or a number")
	ErrBadSettings  = errors.New("unreadable bundler settings")
)

// Amount is a decimal amount. The upstream and the callers send it either as a JSON string or as a number, it is
// always encoded as a string.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrBadAmount, b)
		}
		*a = Amount(n.String())
	}

	return nil
}

// AmountOf formats a float as an Amount the way a JSON number would be printed.
func AmountOf(f float64) Amount {
	return Amount(strconv.FormatFloat(f, 'f', -1, 64))
}

// GlobalLimit is the project wide spend limit of the bundler.
type GlobalLimit struct {
	MaxSpend     Amount `json:"maxSpend"`
	MaxSpendUnit string `json:"maxSpendUnit"`
}

// Limits groups the spend limits of the bundler.
type Limits struct {
	Global GlobalLimit `json:"global"`
}

// BundlerService is the descriptor of the bundler service: spend limits and the address allow/block lists.
type BundlerService struct {
	Name                     string      `json:"name"`
	Actions                  []string    `json:"actions"`
	AllowedChainIDs          []int64     `json:"allowedChainIds"`
	AllowedContractAddresses []string    `json:"allowedContractAddresses"`
	AllowedWallets           []string    `json:"allowedWallets"`
	BlockedWallets           []string    `json:"blockedWallets"`
	BypassWallets            []string    `json:"bypassWallets"`
	Limits                   Limits      `json:"limits"`
	ServerVerifier           interface{} `json:"serverVerifier"`
}

// Bundler returns the bundler descriptor of the project, ok is false when the project has none or it cannot be
// decoded.
func (p Project) Bundler() (b BundlerService, ok bool) {
	for _, s := range p.Services {
		if s.Name != Bundler {
			continue
		}
		if err := s.Decode(&b); err != nil {
			return BundlerService{}, false
		}
		return b, true
	}

	return BundlerService{}, false
}

// OperationResult is the outcome of a delete or update, synthesized by the relay because the upstream gives no reliable
// success signal.
type OperationResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ProjectID string `json:"projectId,omitempty"`
}
