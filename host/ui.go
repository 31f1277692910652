package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// UIElement is one plugin-injected element held for the frontend to render.
type UIElement struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"` // overlay | menu-item | theme-style
	Label   string         `json:"label,omitempty"`
	CSS     string         `json:"css,omitempty"`
	Content map[string]any `json:"content,omitempty"`
}

// Notification is a host notification raised by a plugin.
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

const maxNotifications = 100

// UIRegistry collects plugin-injected UI elements and notifications. It
// implements sandbox.UISurface; the frontend reads the registry through the
// admin API and renders what it finds.
type UIRegistry struct {
	mu            sync.RWMutex
	elements      map[string]UIElement
	notifications []Notification
}

// NewUIRegistry creates an empty registry.
func NewUIRegistry() *UIRegistry {
	return &UIRegistry{elements: make(map[string]UIElement)}
}

func (u *UIRegistry) AddOverlay(id string, content map[string]any) error {
	return u.add(UIElement{ID: id, Kind: "overlay", Content: content})
}

func (u *UIRegistry) AddMenuItem(id, label string) error {
	return u.add(UIElement{ID: id, Kind: "menu-item", Label: label})
}

func (u *UIRegistry) SetThemeStyle(id, css string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	// Themes replace; other element kinds must be unique.
	u.elements[id] = UIElement{ID: id, Kind: "theme-style", CSS: css}
	return nil
}

func (u *UIRegistry) add(el UIElement) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.elements[el.ID]; exists {
		return fmt.Errorf("host: UI element %q already exists", el.ID)
	}
	u.elements[el.ID] = el
	return nil
}

// RemoveByIDPrefix drops every element whose id starts with prefix. The
// sandbox calls this with "<pluginID>:" during disable teardown.
func (u *UIRegistry) RemoveByIDPrefix(prefix string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id := range u.elements {
		if strings.HasPrefix(id, prefix) {
			delete(u.elements, id)
		}
	}
}

func (u *UIRegistry) ShowNotification(level, message string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notifications = append(u.notifications, Notification{Level: level, Message: message})
	if len(u.notifications) > maxNotifications {
		u.notifications = u.notifications[len(u.notifications)-maxNotifications:]
	}
	return nil
}

// Elements returns all registered elements sorted by id.
func (u *UIRegistry) Elements() []UIElement {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]UIElement, 0, len(u.elements))
	for _, el := range u.elements {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Notifications returns the retained notification history, oldest first.
func (u *UIRegistry) Notifications() []Notification {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Notification, len(u.notifications))
	copy(out, u.notifications)
	return out
}
