package bot

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var keySeparators = regexp.MustCompile(`[,\r\n]`)

// ParseKeys splits free text on commas and newlines, trims every entry and
// drops the empty ones. Duplicates are kept.
func ParseKeys(s string) []string {
	parts := keySeparators.Split(s, -1)
	return lo.Compact(lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) }))
}
