package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tarancss/adminrelay/lib/project"
	"github.com/tarancss/adminrelay/lib/upstream"
	"github.com/tarancss/adminrelay/lib/util"
)

// Backend is what the console needs from the relay. *Client implements it.
type Backend interface {
	ListProjects(ctx context.Context) ([]project.Project, error)
	CreateProject(ctx context.Context, r upstream.Request) (json.RawMessage, error)
	DeleteProject(ctx context.Context, id, name string) (project.OperationResult, error)
	UpdateSettings(ctx context.Context, id, name string, s project.Settings) (project.OperationResult, error)
}

// Errors returned by the console.
var (
	ErrBusy          = errors.New("operation already in progress")
	ErrValidation    = errors.New("project name and at least one domain are required")
	ErrNotEditing    = errors.New("no project settings are being edited")
	ErrNotConfirming = errors.New("no project delete to confirm")
	ErrNoSuchProject = errors.New("project not in the list")
)

// Result is the banner showing the outcome of the last operation.
type Result struct {
	Success bool
	Message string
}

// State is a snapshot of the console.
type State struct {
	Projects []project.Project
	Result   *Result

	// create form
	ProjectName string
	Domains     []string

	// edit form, Editing is empty when no project is being edited
	Editing     string
	EditingName string
	Settings    project.Settings

	// project waiting for delete confirmation, if any
	Confirming string

	Loading          bool
	Creating         bool
	Deleting         string // project being deleted
	UpdatingSettings bool
}

// Console holds the state of an admin session. Network calls are made without holding the lock; the busy flags keep
// an action from being submitted twice.
type Console struct {
	be   Backend
	team string

	mu       sync.Mutex
	projects []project.Project
	result   *Result

	name    string
	domains []string

	editing     string
	editingName string
	settings    project.Settings

	confirming string

	loading  bool
	stale    bool // a change happened while loading, load again
	creating bool
	deleting string
	updating bool
}

// NewConsole returns a console managing the projects of team through be.
func NewConsole(be Backend, team string) *Console {
	return &Console{
		be:       be,
		team:     team,
		projects: []project.Project{},
		domains:  []string{},
		settings: blankSettings(),
	}
}

func blankSettings() project.Settings {
	return project.Settings{MaxSpend: project.DefaultMaxSpend}.Normalized()
}

// State returns a copy of the console state.
func (c *Console) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Projects:         append([]project.Project{}, c.projects...),
		ProjectName:      c.name,
		Domains:          append([]string{}, c.domains...),
		Editing:          c.editing,
		EditingName:      c.editingName,
		Settings:         c.settings.Normalized(),
		Confirming:       c.confirming,
		Loading:          c.loading,
		Creating:         c.creating,
		Deleting:         c.deleting,
		UpdatingSettings: c.updating,
	}
	if c.result != nil {
		r := *c.result
		st.Result = &r
	}

	return st
}

// Projects returns the current project list.
func (c *Console) Projects() []project.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]project.Project{}, c.projects...)
}

// Result returns the banner, nil when there is none.
func (c *Console) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

// DismissResult clears the banner.
func (c *Console) DismissResult() {
	c.mu.Lock()
	c.result = nil
	c.mu.Unlock()
}

func (c *Console) setResult(success bool, msg string) {
	c.result = &Result{Success: success, Message: msg}
}

// Refresh reloads the project list. The banner is cleared unless preserve is set. When the list cannot be loaded,
// including a reply in an unknown shape, the list is emptied and a failure banner is shown.
func (c *Console) Refresh(ctx context.Context, preserve bool) error {
	return c.refresh(ctx, preserve, false)
}

// refresh reloads the project list. If a load is in flight it returns ErrBusy; with queue set the in-flight load is
// then repeated once it settles, keeping the banner.
func (c *Console) refresh(ctx context.Context, preserve, queue bool) error {
	c.mu.Lock()
	if c.loading {
		if queue {
			c.stale = true
		}
		c.mu.Unlock()

		return ErrBusy
	}
	c.loading = true
	if !preserve {
		c.result = nil
	}
	c.mu.Unlock()

	for {
		ps, err := c.be.ListProjects(ctx)

		c.mu.Lock()
		again := c.stale
		c.stale = false
		if !again {
			c.loading = false
		}

		if err != nil {
			log.Printf("[list] Error fetching projects: %v", err)
			c.projects = []project.Project{}
			c.setResult(false, "Failed to load projects: "+err.Error())
		} else {
			if ps == nil {
				ps = []project.Project{}
			}
			c.projects = ps
		}
		c.mu.Unlock()

		if !again {
			return err
		}
	}
}

// SetProjectName sets the name of the project to create.
func (c *Console) SetProjectName(name string) {
	c.mu.Lock()
	c.result = nil
	c.name = name
	c.mu.Unlock()
}

// AddDomain adds a domain to the project to create. Empty and repeated domains are ignored.
func (c *Console) AddDomain(domain string) {
	c.mu.Lock()
	c.result = nil
	c.domains = util.AppendUnique(c.domains, strings.TrimSpace(domain))
	c.mu.Unlock()
}

// RemoveDomain removes a domain from the project to create.
func (c *Console) RemoveDomain(domain string) {
	c.mu.Lock()
	c.result = nil
	c.domains = util.Without(c.domains, domain)
	c.mu.Unlock()
}

// Create creates the project in the create form. A form without name or domains is ErrValidation and no call is made.
// On success the form is reset and the list refreshed, keeping the banner.
func (c *Console) Create(ctx context.Context) error {
	c.mu.Lock()
	if c.creating {
		c.mu.Unlock()
		return ErrBusy
	}

	name, domains := strings.TrimSpace(c.name), append([]string{}, c.domains...)
	if name == "" || len(domains) == 0 {
		c.setResult(false, "Project name and at least one domain are required")
		c.mu.Unlock()

		return ErrValidation
	}

	req, err := project.CreateRequest(c.team, name, domains)
	if err != nil {
		c.setResult(false, "Failed to create project: "+err.Error())
		c.mu.Unlock()

		return err
	}

	c.creating = true
	c.result = nil
	c.mu.Unlock()

	_, err = c.be.CreateProject(ctx, req)

	c.mu.Lock()
	c.creating = false
	if err != nil {
		log.Printf("[create] Error creating project: %v", err)
		c.setResult(false, "Failed to create project: "+err.Error())
		c.mu.Unlock()

		return err
	}

	c.setResult(true, fmt.Sprintf(`Project "%s" created successfully!`, name))
	c.name, c.domains = "", []string{}
	c.mu.Unlock()

	c.refreshAfter(ctx)

	return nil
}

// refreshAfter reloads the list after a successful change, keeping the banner. A load already in flight is repeated
// instead, as it may predate the change.
func (c *Console) refreshAfter(ctx context.Context) {
	if err := c.refresh(ctx, true, true); err != nil && !errors.Is(err, ErrBusy) {
		log.Printf("[list] Refresh after change failed: %v", err)
	}
}

// BeginEdit opens the settings form of a project, seeded with its current bundler settings. When those cannot be read
// the form stays closed.
func (c *Console) BeginEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.find(id)
	if !ok {
		return ErrNoSuchProject
	}

	s, err := p.Settings()
	if err != nil {
		log.Printf("[update] Cannot edit project %s: %v", id, err)
		c.setResult(false, "Failed to read project settings: "+err.Error())

		return err
	}

	c.editing, c.editingName = p.ID, p.Name
	c.settings = s

	return nil
}

// CancelEdit closes the settings form without saving.
func (c *Console) CancelEdit() {
	c.mu.Lock()
	c.resetEdit()
	c.mu.Unlock()
}

func (c *Console) resetEdit() {
	c.editing, c.editingName = "", ""
	c.settings = blankSettings()
}

// edit applies f to the settings being edited.
func (c *Console) edit(f func(s *project.Settings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editing == "" {
		return ErrNotEditing
	}

	c.result = nil
	f(&c.settings)

	return nil
}

// SetMaxSpend sets the spend limit.
func (c *Console) SetMaxSpend(amount string) error {
	return c.edit(func(s *project.Settings) { s.MaxSpend = project.Amount(strings.TrimSpace(amount)) })
}

// AddContractAddress restricts the bundler to one more contract.
func (c *Console) AddContractAddress(a string) error {
	return c.edit(func(s *project.Settings) {
		s.AllowedContractAddresses = util.AppendUnique(project.NormalizeList(s.AllowedContractAddresses),
			strings.TrimSpace(a))
	})
}

// RemoveContractAddress removes a contract restriction.
func (c *Console) RemoveContractAddress(a string) error {
	return c.edit(func(s *project.Settings) {
		s.AllowedContractAddresses = util.Without(s.AllowedContractAddresses, a)
	})
}

// AddAllowedWallet adds a wallet to the allowlist.
func (c *Console) AddAllowedWallet(a string) error {
	return c.edit(func(s *project.Settings) {
		s.AllowedWallets = util.AppendUnique(project.NormalizeList(s.AllowedWallets), strings.TrimSpace(a))
	})
}

// RemoveAllowedWallet removes a wallet from the allowlist.
func (c *Console) RemoveAllowedWallet(a string) error {
	return c.edit(func(s *project.Settings) { s.AllowedWallets = util.Without(s.AllowedWallets, a) })
}

// AddBlockedWallet adds a wallet to the blocklist.
func (c *Console) AddBlockedWallet(a string) error {
	return c.edit(func(s *project.Settings) {
		s.BlockedWallets = util.AppendUnique(project.NormalizeList(s.BlockedWallets), strings.TrimSpace(a))
	})
}

// RemoveBlockedWallet removes a wallet from the blocklist.
func (c *Console) RemoveBlockedWallet(a string) error {
	return c.edit(func(s *project.Settings) { s.BlockedWallets = util.Without(s.BlockedWallets, a) })
}

// nilIfEmpty is how the relay is told a list is empty.
func nilIfEmpty(l []string) []string {
	if l = project.NormalizeList(l); len(l) == 0 {
		return nil
	}
	return l
}

// SaveSettings sends the settings being edited. On success the form is closed and the list refreshed, keeping the
// banner. On failure the form stays open.
func (c *Console) SaveSettings(ctx context.Context) error {
	c.mu.Lock()
	if c.editing == "" {
		c.mu.Unlock()
		return ErrNotEditing
	}
	if c.updating {
		c.mu.Unlock()
		return ErrBusy
	}

	id, name := c.editing, c.editingName
	s := project.Settings{
		MaxSpend:                 c.settings.MaxSpend,
		AllowedContractAddresses: nilIfEmpty(c.settings.AllowedContractAddresses),
		AllowedWallets:           nilIfEmpty(c.settings.AllowedWallets),
		BlockedWallets:           nilIfEmpty(c.settings.BlockedWallets),
	}
	c.updating = true
	c.result = nil
	c.mu.Unlock()

	res, err := c.be.UpdateSettings(ctx, id, name, s)

	c.mu.Lock()
	c.updating = false
	if err != nil {
		log.Printf("[update] Error updating project settings: %v", err)
		c.setResult(false, "Failed to update settings: "+err.Error())
		c.mu.Unlock()

		return err
	}

	if !res.Success {
		c.setResult(false, orDefault(res.Message, "Failed to update project settings"))
		c.mu.Unlock()

		return nil
	}

	c.setResult(true, orDefault(res.Message, "Project settings updated successfully!"))
	c.resetEdit()
	c.mu.Unlock()

	c.refreshAfter(ctx)

	return nil
}

// RequestDelete asks for confirmation before deleting a project.
func (c *Console) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.find(id); !ok {
		return ErrNoSuchProject
	}
	c.confirming = id

	return nil
}

// CancelDelete drops the pending delete. No call is made.
func (c *Console) CancelDelete() {
	c.mu.Lock()
	c.confirming = ""
	c.mu.Unlock()
}

// ConfirmDelete deletes the project waiting for confirmation. The project is removed from the list only when the
// relay reports success. The confirmation is closed whatever the outcome.
func (c *Console) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.confirming == "" {
		c.mu.Unlock()
		return ErrNotConfirming
	}
	if c.deleting != "" {
		c.mu.Unlock()
		return ErrBusy
	}

	id := c.confirming
	var name string
	if p, ok := c.find(id); ok {
		name = p.Name
	}
	c.deleting = id
	c.result = nil
	c.mu.Unlock()

	res, err := c.be.DeleteProject(ctx, id, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleting, c.confirming = "", ""
	if err != nil {
		log.Printf("[delete] Error deleting project: %v", err)
		c.setResult(false, "Failed to delete project: "+err.Error())

		return err
	}

	if !res.Success {
		c.setResult(false, orDefault(res.Message, "Failed to delete project"))

		return nil
	}

	c.setResult(true, orDefault(res.Message, "Project deleted successfully!"))

	kept := make([]project.Project, 0, len(c.projects))
	for _, p := range c.projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.projects = kept

	return nil
}

func (c *Console) find(id string) (project.Project, bool) {
	for _, p := range c.projects {
		if p.ID == id {
			return p, true
		}
	}
	return project.Project{}, false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
