package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAllowed(t *testing.T) {
	f := NewFilter(DefaultDenylist)

	tests := []struct {
		prompt  string
		allowed bool
	}{
		{"Cyberpunk city with CR-Neon signs", true},
		{"a BLOODy sunset", false},
		{"bloodhound in a field", false},
		{"NuDe portrait", false},
		{"PORNography", false},
		{"a red sunset", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.allowed, f.Allowed(tt.prompt))
		})
	}
}

func TestFilterMatch(t *testing.T) {
	f := NewFilter(DefaultDenylist)

	term, ok := f.Match("Blood moon")
	assert.True(t, ok)
	assert.Equal(t, "blood", term)

	_, ok = f.Match("full moon")
	assert.False(t, ok)
}

func TestNewFilterNormalizesTerms(t *testing.T) {
	f := NewFilter([]string{" Gore ", "", "gore", "WAR"})
	assert.Equal(t, []string{"gore", "war"}, f.Terms())
	assert.False(t, f.Allowed("a warm day"))
	assert.True(t, f.Allowed("peace"))
}

func TestEmptyFilterAllowsEverything(t *testing.T) {
	f := NewFilter(nil)
	assert.True(t, f.Allowed("blood"))
}
