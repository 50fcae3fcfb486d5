package prompt

import (
	"strings"

	"github.com/samber/lo"
)

var DefaultDenylist = []string{"nude", "porn", "blood"}

// Filter rejects prompts containing any denylisted term as a substring,
// ignoring case. Matching is deliberately coarse: "bloodhound" is rejected.
type Filter struct {
	terms []string
}

func NewFilter(terms []string) *Filter {
	terms = lo.FilterMap(terms, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	return &Filter{terms: lo.Uniq(terms)}
}

func (f *Filter) Allowed(prompt string) bool {
	_, denied := f.Match(prompt)
	return !denied
}

// Match returns the first term found in prompt.
func (f *Filter) Match(prompt string) (string, bool) {
	lower := strings.ToLower(prompt)
	return lo.Find(f.terms, func(t string) bool {
		return strings.Contains(lower, t)
	})
}

func (f *Filter) Terms() []string {
	return append([]string(nil), f.terms...)
}
