package instrument

import (
	"regexp"
	"strings"
)

// hookPatterns builds strip patterns for the injected call text. Capture
// objects never nest braces, so [^{}]* is enough to span them.
func hookPatterns(hooks HookNames) []*regexp.Regexp {
	q := regexp.QuoteMeta
	return []*regexp.Regexp{
		regexp.MustCompile(`(\{ )?` + q(hooks.Statement) + `\(\d+, \d+, \{[^{}]*\}\); `),
		regexp.MustCompile(`(\{ )?` + q(hooks.Break) + `\(\d+, \d+, \{[^{}]*\}\); `),
		regexp.MustCompile(` ?` + q(hooks.Enter) + `\("(?:[^"\\]|\\.)*", \d+, \d+, \{[^{}]*\}\); try \{ `),
		regexp.MustCompile(` \} finally \{ ` + q(hooks.Exit) + `\(\); \} `),
	}
}

// buildLineMap maps 1-based instrumented line numbers back to original
// ones. Hook calls are spliced inline, so whenever the line counts agree
// the mapping is the identity. Otherwise a best-effort walk strips the
// injected call text from each instrumented line and advances a cursor
// through the original lines as the remainders line up.
func buildLineMap(original, instrumented string, hooks HookNames) map[int]int {
	origLines := strings.Split(original, "\n")
	instLines := strings.Split(instrumented, "\n")

	m := make(map[int]int, len(instLines))
	if len(origLines) == len(instLines) {
		for i := range instLines {
			m[i+1] = i + 1
		}
		return m
	}

	patterns := hookPatterns(hooks)
	cursor := 0
	for i, line := range instLines {
		stripped := line
		for _, re := range patterns {
			stripped = re.ReplaceAllString(stripped, "")
		}
		if cursor+1 < len(origLines) && lineMatches(stripped, origLines[cursor+1]) {
			cursor++
		}
		m[i+1] = cursor + 1
	}
	return m
}

// lineMatches accepts exact matches and either-direction prefixes, which
// tolerates brace-wrapping leftovers and statements split across lines.
func lineMatches(stripped, original string) bool {
	s := strings.TrimSpace(stripped)
	o := strings.TrimSpace(original)
	if s == o {
		return true
	}
	if s == "" || o == "" {
		return false
	}
	return strings.HasPrefix(s, o) || strings.HasPrefix(o, s)
}
