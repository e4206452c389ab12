package inventory

import (
	"regexp"
	"strings"
)

// compilePattern converts a glob include pattern to a matcher over relative
// paths. Wildcards cross directory separators (`*.mkv` matches files at any
// depth), which mirrors find -path rather than filepath.Match. An empty
// pattern matches everything.
func compilePattern(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}

	var sb strings.Builder
	sb.WriteString(`\A`)
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`\z`)

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}
