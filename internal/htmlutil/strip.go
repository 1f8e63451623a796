// Package htmlutil implements the content field HTML-to-plain-text
// derivation policy from SPEC_FULL.md §7.
package htmlutil

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	blockClosers = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|blockquote)>`)
	brTag        = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
	whitespace   = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
	numericEnt   = regexp.MustCompile(`&#(\d+);`)
)

var namedEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&nbsp;": " ",
}

// Strip derives plain text from an HTML content field, following the
// fixed 4-step policy: replace <br>/block closers with newlines, remove
// remaining tags, decode the fixed named+numeric entity set, collapse
// whitespace. Strip(Strip(x)) == Strip(x) whenever the decoded text holds
// no tag-like or entity-like sequence; input such as "&lt;b&gt;hi" decodes
// to "<b>hi", which a second pass reduces to "hi".
func Strip(html string) string {
	s := brTag.ReplaceAllString(html, "\n")
	s = blockClosers.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")

	for entity, replacement := range namedEntities {
		s = strings.ReplaceAll(s, entity, replacement)
	}
	s = numericEnt.ReplaceAllStringFunc(s, func(m string) string {
		sub := numericEnt.FindStringSubmatch(m)
		n, err := strconv.Atoi(sub[1])
		if err != nil || n <= 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})

	s = whitespace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
