package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MinOrdinal = 1
	MaxOrdinal = 4

	// MaxUnitChars caps what HandOff passes to the generation model.
	MaxUnitChars = 4000
)

// LessonUnit is one numbered lesson cut out of a multi-lesson document.
type LessonUnit struct {
	Ordinal int    `json:"ordinal"`
	Content string `json:"content"`
}

type Strictness string

const (
	// StrictnessLesson only splits on "Lesson N" markers.
	StrictnessLesson Strictness = "lesson"
	// StrictnessLoose also splits on a bare "N." / "N)" at the start of a line.
	StrictnessLoose Strictness = "loose"
)

var (
	lessonMarkerRe = regexp.MustCompile(`\b(?:Lesson|LESSON)[ \t]*[#:.\-]?[ \t]*(\d+)\b(?:[ \t]*[:.)\-])?`)
	bareMarkerRe   = regexp.MustCompile(`(?m)^[ \t]*(\d+)[.):][ \t]`)
)

// Segmenter splits normalized text at ordinal lesson markers. It is a best-effort
// classifier: a "Lesson 2" inside running prose is still a boundary, and a marker
// with an ordinal outside 1..4 (e.g. "Lesson 12") never is.
type Segmenter struct {
	Strictness Strictness
}

func NewSegmenter(strictness Strictness) *Segmenter {
	if strictness != StrictnessLoose {
		strictness = StrictnessLesson
	}
	return &Segmenter{Strictness: strictness}
}

type marker struct {
	start   int
	end     int
	ordinal int
}

// Segment returns units in document order. Text before the first marker is
// dropped, duplicate or out-of-order ordinals are kept as they appear, and
// units whose content is empty after collapsing whitespace are omitted.
// No valid marker yields an empty (non-nil) slice.
func (s *Segmenter) Segment(text string) []LessonUnit {
	markers := s.findMarkers(text)
	units := make([]LessonUnit, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		content := CollapseWhitespace(text[m.end:end])
		if content == "" {
			continue
		}
		units = append(units, LessonUnit{Ordinal: m.ordinal, Content: content})
	}
	return units
}

func (s *Segmenter) findMarkers(text string) []marker {
	out := collectMarkers(lessonMarkerRe, text, nil)
	if s != nil && s.Strictness == StrictnessLoose {
		out = collectMarkers(bareMarkerRe, text, out)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].start < out[b].start })

	// a bare digit inside a "Lesson N" span must not split it again
	dedup := out[:0]
	lastEnd := -1
	for _, m := range out {
		if m.start < lastEnd {
			continue
		}
		dedup = append(dedup, m)
		lastEnd = m.end
	}
	return dedup
}

func collectMarkers(re *regexp.Regexp, text string, into []marker) []marker {
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil || n < MinOrdinal || n > MaxOrdinal {
			continue
		}
		into = append(into, marker{start: loc[0], end: loc[1], ordinal: n})
	}
	return into
}

// HandOff returns the unit content capped at max runes (MaxUnitChars when max <= 0).
// The unit itself is left untouched.
func HandOff(u LessonUnit, max int) string {
	if max <= 0 {
		max = MaxUnitChars
	}
	return TruncateRunes(u.Content, max)
}

func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	b.Grow(max)
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
