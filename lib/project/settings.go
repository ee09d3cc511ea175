package project

import (
	"encoding/json"
	"fmt"
)

// DefaultMaxSpend seeds the settings form when the project has no spend limit.
const DefaultMaxSpend Amount = "100"

// BundlerChainID is the only chain the bundler is enabled for.
const BundlerChainID int64 = 4202

// DeveloperFeeBPS is the pay service developer fee in basis points.
const DeveloperFeeBPS = 70

// NormalizeList returns a copy of l where a nil list and the upstream encoding of an empty list ([""]) are both an
// empty, non-nil slice.
func NormalizeList(l []string) []string {
	if len(l) == 0 || (len(l) == 1 && l[0] == "") {
		return []string{}
	}
	return append([]string{}, l...)
}

// Settings are the editable bundler settings of a project, as sent by the admin client when updating a project. Any
// list may be null.
type Settings struct {
	MaxSpend                 Amount   `json:"maxSpend"`
	AllowedContractAddresses []string `json:"allowedContractAddresses"`
	AllowedWallets           []string `json:"allowedWallets"`
	BlockedWallets           []string `json:"blockedWallets"`
}

// Normalized returns s with all its lists normalized.
func (s Settings) Normalized() Settings {
	return Settings{
		MaxSpend:                 s.MaxSpend,
		AllowedContractAddresses: NormalizeList(s.AllowedContractAddresses),
		AllowedWallets:           NormalizeList(s.AllowedWallets),
		BlockedWallets:           NormalizeList(s.BlockedWallets),
	}
}

// bundlerSettings holds the bundler fields the edit form and the summary read. The rest of the descriptor is not
// decoded so unexpected values there do not hide these.
type bundlerSettings struct {
	Limits struct {
		Global struct {
			MaxSpend     Amount `json:"maxSpend"`
			MaxSpendUnit string `json:"maxSpendUnit"`
		} `json:"global"`
	} `json:"limits"`
	AllowedContractAddresses []string `json:"allowedContractAddresses"`
	AllowedWallets           []string `json:"allowedWallets"`
	BlockedWallets           []string `json:"blockedWallets"`
}

// bundlerSettings returns the settings of the bundler service, found is false when the project has none.
func (p Project) bundlerSettings() (b bundlerSettings, found bool, err error) {
	for _, s := range p.Services {
		if s.Name != Bundler {
			continue
		}
		if err = s.Decode(&b); err != nil {
			return bundlerSettings{}, true, fmt.Errorf("%w: bundler of project %s: %s", ErrBadSettings, p.ID, err)
		}
		return b, true, nil
	}

	return bundlerSettings{}, false, nil
}

// Settings returns the current bundler settings of the project, used to seed an edit form. Missing values get their
// defaults. Settings that cannot be read are ErrBadSettings, never a blank form.
func (p Project) Settings() (Settings, error) {
	b, _, err := p.bundlerSettings()
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		MaxSpend:                 b.Limits.Global.MaxSpend,
		AllowedContractAddresses: b.AllowedContractAddresses,
		AllowedWallets:           b.AllowedWallets,
		BlockedWallets:           b.BlockedWallets,
	}.Normalized()
	if s.MaxSpend == "" {
		s.MaxSpend = DefaultMaxSpend
	}

	return s, nil
}

// Summary is what a project card shows about the bundler.
type Summary struct {
	HasBundler     bool
	MaxSpend       Amount
	MaxSpendUnit   string
	Contracts      int // 0 means all contracts allowed
	AllowedWallets int
	BlockedWallets int
}

// Summary returns the bundler summary of the project. A bundler whose settings cannot be read has no badges.
func (p Project) Summary() Summary {
	b, found, err := p.bundlerSettings()
	if !found {
		return Summary{}
	}
	if err != nil {
		return Summary{HasBundler: true}
	}

	unit := b.Limits.Global.MaxSpendUnit
	if unit == "" {
		unit = "USD"
	}

	return Summary{
		HasBundler:     true,
		MaxSpend:       b.Limits.Global.MaxSpend,
		MaxSpendUnit:   unit,
		Contracts:      len(NormalizeList(b.AllowedContractAddresses)),
		AllowedWallets: len(NormalizeList(b.AllowedWallets)),
		BlockedWallets: len(NormalizeList(b.BlockedWallets)),
	}
}

// servicesBody is the body of the project update and create calls.
type servicesBody struct {
	Name     string        `json:"name,omitempty"`
	Domains  []string      `json:"domains,omitempty"`
	Services []interface{} `json:"services"`
}

// UpdateBody builds the full services document written on a settings update. The upstream replaces all the services
// of the project so every descriptor is sent, only the bundler carries the given settings. maxSpend is passed on as
// given, even empty.
func UpdateBody(s Settings) ([]byte, error) {
	s = s.Normalized()

	bundler := BundlerService{
		Name:                     Bundler,
		Actions:                  []string{},
		AllowedChainIDs:          []int64{BundlerChainID},
		AllowedContractAddresses: s.AllowedContractAddresses,
		AllowedWallets:           s.AllowedWallets,
		BlockedWallets:           s.BlockedWallets,
		BypassWallets:            []string{},
		Limits:                   Limits{Global: GlobalLimit{MaxSpend: s.MaxSpend, MaxSpendUnit: "usd"}},
		ServerVerifier:           nil,
	}

	body := servicesBody{Services: []interface{}{
		bundler,
		map[string]interface{}{"name": Chainsaw, "actions": []string{}},
		map[string]interface{}{
			"name":                    EmbeddedWallets,
			"actions":                 []string{},
			"applicationName":         EmbeddedWallets,
			"recoveryShareManagement": "AWS_MANAGED",
		},
		map[string]interface{}{"name": Insight, "actions": []string{}},
		map[string]interface{}{"name": Pay, "actions": []string{}, "developerFeeBPS": DeveloperFeeBPS},
		map[string]interface{}{"name": Relayer, "actions": []string{}},
		map[string]interface{}{"name": RPC, "actions": []string{}},
		map[string]interface{}{"name": Storage, "actions": []string{"read", "write"}},
	}}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cannot encode services: %w", err)
	}

	return b, nil
}

// CreateBody builds the body of a new project with the default set of services.
func CreateBody(name string, domains []string) ([]byte, error) {
	body := servicesBody{
		Name:    name,
		Domains: domains,
		Services: []interface{}{
			map[string]interface{}{"name": Storage, "actions": []string{"read", "write"}},
			map[string]interface{}{"name": RPC, "actions": []string{}},
			map[string]interface{}{"name": Bundler, "actions": []string{}},
			map[string]interface{}{"name": EmbeddedWallets, "actions": []string{}},
			map[string]interface{}{"name": Pay, "payoutAddress": nil, "actions": []string{}},
			map[string]interface{}{"name": Insight, "actions": []string{}},
		},
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cannot encode project: %w", err)
	}

	return b, nil
}
