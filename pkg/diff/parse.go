package diff

import (
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parsed is the structured form of a unified diff.
type Parsed struct {
	OriginalFile  string
	FormattedFile string
	Hunks         []Hunk
}

// Parse reads unified diff text. Unparseable hunk headers are skipped
// together with the body lines that follow them.
func Parse(text string) Parsed {
	var out Parsed
	var cur *Hunk
	oldSeen, newSeen := 0, 0

	flush := func() {
		if cur != nil {
			out.Hunks = append(out.Hunks, *cur)
			cur = nil
		}
	}
	full := func() bool {
		return cur != nil && oldSeen >= cur.OldCount && newSeen >= cur.NewCount
	}

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			flush()
			h, ok := parseHeader(line)
			if !ok {
				continue
			}
			cur = &h
			oldSeen, newSeen = 0, 0
		case (cur == nil || full()) && strings.HasPrefix(line, "--- "):
			flush()
			out.OriginalFile = fileName(line[4:])
		case (cur == nil || full()) && strings.HasPrefix(line, "+++ "):
			flush()
			out.FormattedFile = fileName(line[4:])
		case cur == nil:
			// Outside a hunk: preamble or body of a skipped header.
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file"
		case strings.HasPrefix(line, "+"):
			cur.Lines = append(cur.Lines, Line{Kind: Insert, Text: line[1:]})
			newSeen++
		case strings.HasPrefix(line, "-"):
			cur.Lines = append(cur.Lines, Line{Kind: Delete, Text: line[1:]})
			oldSeen++
		case strings.HasPrefix(line, " "):
			cur.Lines = append(cur.Lines, Line{Kind: Equal, Text: line[1:]})
			oldSeen++
			newSeen++
		case line == "" && !full():
			// Some tools strip the single space of empty context lines.
			cur.Lines = append(cur.Lines, Line{Kind: Equal})
			oldSeen++
			newSeen++
		}
	}
	flush()
	return out
}

func parseHeader(line string) (Hunk, bool) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, false
	}
	atoi := func(s string, def int) int {
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return def
		}
		return n
	}
	return Hunk{
		OldStart: atoi(m[1], 0),
		OldCount: atoi(m[2], 1),
		NewStart: atoi(m[3], 0),
		NewCount: atoi(m[4], 1),
	}, true
}

// fileName drops a trailing tab-separated timestamp.
func fileName(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// DiffStats summarizes a unified diff.
type DiffStats struct {
	Additions int  `json:"additions"`
	Deletions int  `json:"deletions"`
	Changed   bool `json:"changed"`
}

// Stats counts inserted and deleted hunk lines. Lines are classified the
// way Parse does, so a deleted "-- x" inside a hunk is not taken for a
// "---" file header.
func Stats(text string) DiffStats {
	var s DiffStats
	for _, h := range Parse(text).Hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case Insert:
				s.Additions++
			case Delete:
				s.Deletions++
			}
		}
	}
	s.Changed = s.Additions+s.Deletions > 0
	return s
}
