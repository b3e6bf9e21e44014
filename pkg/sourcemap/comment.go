package sourcemap

import (
	"regexp"
	"strings"
)

// mappingURL matches a line comment or block comment carrying a
// sourceMappingURL pragma, including trailing whitespace.
var mappingURL = regexp.MustCompile(
	`(?:/\*(?:\s*\r?\n(?://)?)?(?:[#@] sourceMappingURL=([^\s'"]*))\s*\*/|//(?:[#@] sourceMappingURL=([^\s'"]*)))\s*`,
)

// lastMatch returns the submatch indexes of the last pragma in content.
func lastMatch(content string) []int {
	all := mappingURL.FindAllStringSubmatchIndex(content, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// FindURL returns the URL of the last sourceMappingURL pragma in content.
func FindURL(content string) (string, bool) {
	m := lastMatch(content)
	if m == nil {
		return "", false
	}
	for _, g := range []int{1, 2} {
		if start := m[2*g]; start >= 0 {
			return content[start:m[2*g+1]], true
		}
	}
	return "", false
}

// RemoveURL strips the last sourceMappingURL pragma from content.
func RemoveURL(content string) string {
	m := lastMatch(content)
	if m == nil {
		return content
	}
	return content[:m[0]] + content[m[1]:]
}

// AppendURL adds a line comment pointing at url to the end of content.
func AppendURL(content, url string) string {
	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("//# sourceMappingURL=")
	b.WriteString(url)
	b.WriteByte('\n')
	return b.String()
}
