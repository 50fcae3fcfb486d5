package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Placeholder is replaced with the encoded prompt when a URL is built.
const Placeholder = "{p}"

const DefaultName = "CR-Flux"

var ErrUnknown = errors.New("unknown model")

type Entry struct {
	Name     string
	Template string
}

var Builtin = []Entry{
	{Name: "CR-Avatar", Template: "https://robohash.org/{p}.png?set=set1"},
	{Name: "CR-Turbo", Template: "https://image.pollinations.ai/prompt/{p}?model=turbo&width=512&height=512&nologo=true"},
	{Name: "CR-Flux", Template: "https://image.pollinations.ai/prompt/{p}?model=flux&width=1024&height=1024&nologo=true"},
}

// Registry is an immutable, ordered set of models.
type Registry struct {
	entries   []Entry
	templates map[string]string
	def       string
}

func NewRegistry(entries []Entry, def string) (*Registry, error) {
	if len(entries) == 0 {
		return nil, errors.New("model registry is empty")
	}

	templates := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, errors.New("model name is empty")
		}
		if !strings.Contains(e.Template, Placeholder) {
			return nil, fmt.Errorf("model %q: template has no %s placeholder", e.Name, Placeholder)
		}
		if _, ok := templates[e.Name]; ok {
			return nil, fmt.Errorf("model %q registered twice", e.Name)
		}
		templates[e.Name] = e.Template
	}
	if _, ok := templates[def]; !ok {
		return nil, fmt.Errorf("default model %q: %w", def, ErrUnknown)
	}

	return &Registry{
		entries:   append([]Entry(nil), entries...),
		templates: templates,
		def:       def,
	}, nil
}

// ParseEntries reads "name|template" lines, the format used for the SSM
// override parameters.
func ParseEntries(lines []string) ([]Entry, error) {
	lines = lo.Filter(lines, func(l string, _ int) bool {
		return strings.TrimSpace(l) != ""
	})

	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		name, tmpl, ok := strings.Cut(strings.TrimSpace(l), "|")
		if !ok {
			return nil, fmt.Errorf("malformed model entry %q", l)
		}
		entries = append(entries, Entry{Name: strings.TrimSpace(name), Template: strings.TrimSpace(tmpl)})
	}
	return entries, nil
}

func (r *Registry) Resolve(name string) (string, bool) {
	tmpl, ok := r.templates[name]
	return tmpl, ok
}

func (r *Registry) Names() []string {
	return lo.Map(r.entries, func(e Entry, _ int) string {
		return e.Name
	})
}

func (r *Registry) Default() string {
	return r.def
}
