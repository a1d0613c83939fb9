// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package fingerprint

import "strings"

// ParseDepInfo parses a Make-format dep-info file body (as emitted by
// the compiler contract's `--emit=dep-info`): one or more
// `target: src1 src2 …` rules, where a trailing backslash continues
// the rule onto the next line. Per the recorded supplemented-features
// decision, this tolerates a missing trailing newline and a missing
// final backslash continuation (both observed in real compiler output
// under partial writes), rather than treating either as a parse
// error.
func ParseDepInfo(data []byte) []string {
	text := string(data)
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")

	var sources []string
	seen := make(map[string]bool)

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colon := strings.Index(line, ":")
		if colon < 0 {
			continue // malformed rule with no target; tolerated, not fatal
		}
		rest := strings.TrimSpace(line[colon+1:])
		if rest == "" {
			continue
		}

		for _, field := range splitUnescaped(rest) {
			if field == "" || seen[field] {
				continue
			}
			seen[field] = true
			sources = append(sources, field)
		}
	}

	return sources
}

// splitUnescaped splits on whitespace while respecting a backslash
// escaping the following space, matching make's own quoting rule for
// paths containing spaces.
func splitUnescaped(s string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}
