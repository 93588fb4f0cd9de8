// Package source defines the contract every metadata adapter implements.
package source

import (
	"context"
	"regexp"
	"strings"

	"github.com/varoOP/mediahub/internal/domain"
)

//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks

// Adapter searches one remote source. An empty result is not an error;
// errors are reserved for transport failures and unrecognized responses.
type Adapter interface {
	Name() domain.SourceType
	Search(ctx context.Context, keyword string) ([]domain.Record, error)
}

// Browser pages through a source category. It returns the items of one
// upstream page and the upstream total page count.
type Browser interface {
	FetchPage(ctx context.Context, page int) ([]domain.Record, int, error)
}

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{3000}]+`)
	blockRun = regexp.MustCompile(`\s{4,}`)
)

// CleanText collapses whitespace runs into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanSummary keeps paragraph breaks: runs of four or more whitespace
// characters and explicit line breaks become newlines.
func CleanSummary(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = blockRun.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(s)
}

// FormatStaff renders credit groups as "role: a, b | role: c", skipping empty groups.
func FormatStaff(groups ...Credit) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		names := make([]string, 0, len(g.Names))
		for _, n := range g.Names {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			continue
		}
		parts = append(parts, g.Role+": "+strings.Join(names, ", "))
	}
	return strings.Join(parts, " | ")
}

// Credit is one role with its people.
type Credit struct {
	Role  string
	Names []string
}

// FirstN returns at most n leading elements.
func FirstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
