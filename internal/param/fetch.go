package param

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}

// SplitList splits an SSM StringList value.
func SplitList(value string) []string {
	return lo.FilterMap(strings.Split(value, ","), func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
}
