package tickets

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Jacobbrewer1/plexcord/pkg/entities"
)

// Action is a management action on an existing ticket.
type Action string

const (
	ActionClose  Action = "close"
	ActionLock   Action = "lock"
	ActionUnlock Action = "unlock"
	ActionClaim  Action = "claim"
)

// Actions lists the management actions in button order.
var Actions = []Action{ActionClose, ActionLock, ActionUnlock, ActionClaim}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionClose, ActionLock, ActionUnlock, ActionClaim:
		return true
	}
	return false
}

// LegacyCreateID is the custom ID of the original single ticket button. It
// opens a ticket from the generic panel's first label.
const LegacyCreateID = "create_ticket"

// RouteKind tells what a button press should do.
type RouteKind int

const (
	RouteCreate RouteKind = iota + 1
	RouteManage
)

func (k RouteKind) String() string {
	switch k {
	case RouteCreate:
		return "create"
	case RouteManage:
		return "manage"
	default:
		return "unknown"
	}
}

// Route is the resolved meaning of a button custom ID. Label is set for
// RouteCreate, Action for RouteManage.
type Route struct {
	Kind     RouteKind
	Category string
	Label    string
	Action   Action
}

// CreateID returns the custom ID of a panel button.
func CreateID(category, label string) string {
	return entities.Slug(category) + "_" + entities.Slug(label)
}

// ManageID returns the custom ID of a ticket management button.
func ManageID(category string, action Action) string {
	return entities.Slug(category) + "_" + string(action)
}

// ValidateCategory checks a category can be used in custom IDs.
func ValidateCategory(category string) error {
	if category == "" || entities.Slug(category) != category || strings.Contains(category, "_") {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	// The legacy button ID would otherwise be reachable as a label of this category.
	if strings.HasPrefix(LegacyCreateID, category+"_") {
		return fmt.Errorf("%w: %q is reserved", ErrUnknownCategory, category)
	}
	return nil
}

// ValidateLabels checks a panel's labels produce distinct creation IDs that
// can never collide with a management ID.
func ValidateLabels(labels []string) error {
	if len(labels) == 0 || len(labels) > entities.MaxPanelLabels {
		return fmt.Errorf("%w: need between 1 and %d labels, got %d", ErrInvalidLabels, entities.MaxPanelLabels, len(labels))
	}

	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		slug := entities.Slug(label)
		switch {
		case slug == "":
			return fmt.Errorf("%w: label %q has no letters or digits", ErrInvalidLabels, label)
		case Action(slug).Valid():
			return fmt.Errorf("%w: label %q is reserved", ErrInvalidLabels, label)
		case seen[slug]:
			return fmt.Errorf("%w: label %q is duplicated", ErrInvalidLabels, label)
		}
		seen[slug] = true
	}
	return nil
}

// Router maps button custom IDs to routes. A custom ID resolves to at most one
// route, and management IDs never resolve to a creation route.
type Router struct {
	mut    sync.RWMutex
	routes map[string]Route
}

// NewRouter creates a router with management routes for the built-in categories.
func NewRouter() *Router {
	r := &Router{routes: make(map[string]Route)}
	for _, c := range []string{entities.CategoryPlex, entities.CategoryTV, entities.CategoryGeneric} {
		r.addManage(c)
	}
	return r
}

// BuildRouter creates a router from persisted panels. Panels that fail
// validation are returned in the error but do not stop the others loading.
func BuildRouter(panels []*entities.TicketPanel) (*Router, error) {
	r := NewRouter()

	var errs []error
	for _, p := range panels {
		if err := r.Register(p); err != nil {
			errs = append(errs, fmt.Errorf("panel %s/%s: %w", p.GuildID, p.Category, err))
		}
	}
	if len(errs) > 0 {
		return r, errors.Join(errs...)
	}
	return r, nil
}

// Register adds the routes for a panel, replacing any previous routes for its
// category.
func (r *Router) Register(p *entities.TicketPanel) error {
	if err := ValidateCategory(p.Category); err != nil {
		return err
	}
	if err := ValidateLabels(p.ButtonLabels); err != nil {
		return err
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	for id, route := range r.routes {
		if route.Kind == RouteCreate && route.Category == p.Category {
			delete(r.routes, id)
		}
	}

	r.addManage(p.Category)
	for _, label := range p.ButtonLabels {
		r.routes[CreateID(p.Category, label)] = Route{Kind: RouteCreate, Category: p.Category, Label: label}
	}

	if p.Category == entities.CategoryGeneric {
		r.routes[LegacyCreateID] = Route{Kind: RouteCreate, Category: p.Category, Label: p.ButtonLabels[0]}
	}
	return nil
}

func (r *Router) addManage(category string) {
	for _, a := range Actions {
		r.routes[ManageID(category, a)] = Route{Kind: RouteManage, Category: category, Action: a}
	}
}

// Resolve looks up a custom ID.
func (r *Router) Resolve(customID string) (Route, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()

	route, ok := r.routes[customID]
	return route, ok
}

// Len returns the number of registered custom IDs.
func (r *Router) Len() int {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return len(r.routes)
}
