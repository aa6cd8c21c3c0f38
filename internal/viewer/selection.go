package viewer

import (
	"errors"
	"slices"
	"sync"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
)

// ErrUnknownOption is returned when a chosen URL is not one of the options.
var ErrUnknownOption = errors.New("selection is not one of the catalog options")

// Option is one entry of the layer dropdown.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Selection is the dropdown state: one option per catalog layer, labelled by
// filename and valued by archive URL.
type Selection struct {
	mu       sync.RWMutex
	options  []Option
	selected string
	gen      uint64
}

// Populate replaces the options with one per layer, in catalog order, and
// clears the current choice.
func (s *Selection) Populate(layers []domain.LayerDescriptor) {
	opts := make([]Option, 0, len(layers))
	for _, l := range layers {
		opts = append(opts, Option{Label: l.Filename, Value: l.S3URL})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = opts
	s.selected = ""
	s.gen = 0
}

// Options returns a copy of the rendered options.
func (s *Selection) Options() []Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.options)
}

// Selected returns the chosen URL, or "" before any choice.
func (s *Selection) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Last returns the URL of the last option.
func (s *Selection) Last() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.options) == 0 {
		return "", false
	}
	return s.options[len(s.options)-1].Value, true
}

// Lookup returns the option valued url.
func (s *Selection) Lookup(url string) (Option, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.options, func(o Option) bool { return o.Value == url })
	if i < 0 {
		return Option{}, false
	}
	return s.options[i], true
}

// Choose marks url as selected.
func (s *Selection) Choose(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(url) {
		return ErrUnknownOption
	}
	s.selected = url
	return nil
}

// record marks url as selected unless a later overlay generation already
// recorded its own choice.
func (s *Selection) record(url string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.gen || !s.has(url) {
		return
	}
	s.selected = url
	s.gen = gen
}

func (s *Selection) has(url string) bool {
	return slices.ContainsFunc(s.options, func(o Option) bool { return o.Value == url })
}
