package usecases

import (
	"sort"
	"sync"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// MarkerSet holds the displayed markers of one layer, keyed by feature id.
// It is one marker view: the refresher owns the shared one and every
// WebSocket connection owns its own, so popup state is per view.
type MarkerSet struct {
	layer domain.LayerKind

	mu          sync.RWMutex
	markers     map[string]*domain.Marker
	placeholder bool
}

// NewMarkerSet creates an empty marker view for a layer.
func NewMarkerSet(layer domain.LayerKind) *MarkerSet {
	return &MarkerSet{
		layer:   layer,
		markers: make(map[string]*domain.Marker),
	}
}

// Layer returns the layer this view belongs to.
func (s *MarkerSet) Layer() domain.LayerKind { return s.layer }

// Apply replaces the displayed markers with specs and returns the changes.
// Events are ordered removed, updated, added with ids sorted inside each
// group. Updated markers keep their popup state and carry Reopen when the
// popup was open. Specs without an id are ignored; for duplicate ids the
// last one wins.
func (s *MarkerSet) Apply(specs []domain.MarkerSpec) []domain.MarkerEvent {
	next := make(map[string]domain.MarkerSpec, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			continue
		}
		spec.Layer = s.layer
		next[spec.ID] = spec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed, updated, added []string
	for id := range s.markers {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id := range next {
		if _, ok := s.markers[id]; ok {
			updated = append(updated, id)
		} else {
			added = append(added, id)
		}
	}
	sort.Strings(removed)
	sort.Strings(updated)
	sort.Strings(added)

	events := make([]domain.MarkerEvent, 0, len(removed)+len(updated)+len(added)+1)

	if len(next) > 0 && s.placeholder {
		s.placeholder = false
		events = append(events, domain.MarkerEvent{Kind: domain.MarkerPlaceholderCleared, Layer: s.layer})
	}

	for _, id := range removed {
		delete(s.markers, id)
		events = append(events, domain.MarkerEvent{Kind: domain.MarkerRemoved, Layer: s.layer, ID: id})
	}
	for _, id := range updated {
		m := s.markers[id]
		m.MarkerSpec = next[id]
		events = append(events, domain.MarkerEvent{
			Kind:   domain.MarkerUpdated,
			Layer:  s.layer,
			ID:     id,
			Marker: copyMarker(m),
			Reopen: m.PopupOpen,
		})
	}
	for _, id := range added {
		m := &domain.Marker{MarkerSpec: next[id]}
		s.markers[id] = m
		events = append(events, domain.MarkerEvent{
			Kind:   domain.MarkerAdded,
			Layer:  s.layer,
			ID:     id,
			Marker: copyMarker(m),
		})
	}

	if len(next) == 0 && !s.placeholder {
		s.placeholder = true
		events = append(events, domain.MarkerEvent{
			Kind:  domain.MarkerPlaceholder,
			Layer: s.layer,
			Text:  domain.PlaceholderText,
		})
	}

	return events
}

// SetPopupOpen records whether the popup of marker id is open.
func (s *MarkerSet) SetPopupOpen(id string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markers[id]
	if !ok {
		return domain.ErrMarkerNotFound
	}
	m.PopupOpen = open
	return nil
}

// Get returns a copy of one marker.
func (s *MarkerSet) Get(id string) (domain.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markers[id]
	if !ok {
		return domain.Marker{}, false
	}
	return *m, true
}

// Markers returns a copy of every displayed marker sorted by id.
func (s *MarkerSet) Markers() []domain.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Marker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of displayed markers.
func (s *MarkerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// Placeholder reports whether the layer currently shows the "no data"
// placeholder.
func (s *MarkerSet) Placeholder() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placeholder
}

// Reset drops every marker and the placeholder state. A WebSocket view is
// reset before a resync so the next snapshot arrives as additions.
func (s *MarkerSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = make(map[string]*domain.Marker)
	s.placeholder = false
}

func copyMarker(m *domain.Marker) *domain.Marker {
	c := *m
	return &c
}
