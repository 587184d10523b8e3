// Package sections converts between flat report text and a header-keyed
// section map.
//
// A header line is a line whose trimmed content is exactly "<header>:" for one
// of the requested headers. Matching is exact and case-sensitive; template
// authors rely on that, so loosening it is a breaking change.
package sections

import "strings"

// Split scans text line by line and returns the body of every requested header.
// Content before the first recognised header is dropped. Headers that never
// appear map to "". Bodies are trimmed.
func Split(text string, headers []string) map[string]string {
	bodies := make(map[string][]string, len(headers))
	markers := make(map[string]string, len(headers))
	for _, h := range headers {
		bodies[h] = nil
		markers[h+":"] = h
	}

	current := ""
	open := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if h, ok := markers[strings.TrimSpace(line)]; ok {
			current = h
			open = true
			continue
		}
		if open {
			bodies[current] = append(bodies[current], line)
		}
	}

	out := make(map[string]string, len(headers))
	for h, lines := range bodies {
		out[h] = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return out
}

// Join renders sections in header order as "<header>:\n<body>\n\n" blocks and
// trims the result. Missing sections render with an empty body.
func Join(sections map[string]string, headers []string) string {
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString(":\n")
		b.WriteString(strings.TrimSpace(sections[h]))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// Empty returns the headers whose section body is blank, in header order.
func Empty(sections map[string]string, headers []string) []string {
	var missing []string
	for _, h := range headers {
		if strings.TrimSpace(sections[h]) == "" {
			missing = append(missing, h)
		}
	}
	return missing
}
