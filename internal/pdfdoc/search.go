package pdfdoc

import (
	"math"
	"strings"
	"unicode"
)

// Glyph is a run of text at a position in PDF user space. Y is the baseline.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Rect is an axis-aligned rectangle in PDF user space.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		LLX: math.Min(r.LLX, o.LLX),
		LLY: math.Min(r.LLY, o.LLY),
		URX: math.Max(r.URX, o.URX),
		URY: math.Max(r.URY, o.URY),
	}
}

// Match is one occurrence of a quote on a page, covered by one rectangle per
// text line it spans.
type Match struct {
	Page  int
	Rects []Rect
}

// Bounds returns the union of the match rectangles.
func (m Match) Bounds() Rect {
	b := m.Rects[0]
	for _, r := range m.Rects[1:] {
		b = b.Union(r)
	}
	return b
}

// NormalizeSpace collapses every whitespace run in s to one space and trims
// the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textStream is the page text flattened to runes with whitespace collapsed.
// owner maps each rune to the glyph it came from, or -1 for separators.
type textStream struct {
	runes []rune
	owner []int
}

func (s *textStream) push(r rune, owner int) {
	s.runes = append(s.runes, r)
	s.owner = append(s.owner, owner)
}

func (s *textStream) space() {
	if n := len(s.runes); n > 0 && s.runes[n-1] != ' ' {
		s.push(' ', -1)
	}
}

func fontSize(g Glyph) float64 {
	return math.Max(g.FontSize, 1)
}

func sameLine(a, b Glyph) bool {
	return math.Abs(a.Y-b.Y) <= 0.5*math.Max(fontSize(a), fontSize(b))
}

// separated reports whether a word break falls between prev and g: a line
// change or a horizontal gap wider than a fraction of the font size.
func separated(prev, g Glyph) bool {
	if !sameLine(prev, g) {
		return true
	}
	return g.X-(prev.X+prev.W) > 0.2*fontSize(g)
}

func buildStream(glyphs []Glyph) textStream {
	var s textStream
	for i, g := range glyphs {
		if i > 0 && separated(glyphs[i-1], g) {
			s.space()
		}
		for _, r := range g.S {
			if unicode.IsSpace(r) {
				s.space()
				continue
			}
			s.push(r, i)
		}
	}
	return s
}

// FindMatches locates every non-overlapping occurrence of needle in the
// glyph sequence. Whitespace runs on both sides compare as a single space;
// matching is otherwise exact.
func FindMatches(glyphs []Glyph, needle string) [][]Rect {
	want := []rune(NormalizeSpace(needle))
	if len(want) == 0 {
		return nil
	}
	s := buildStream(glyphs)

	var out [][]Rect
	for i := 0; i+len(want) <= len(s.runes); {
		if !runesEqual(s.runes[i:i+len(want)], want) {
			i++
			continue
		}
		if rects := lineRects(glyphs, s.owner[i:i+len(want)]); len(rects) > 0 {
			out = append(out, rects)
		}
		i += len(want)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// lineRects returns one rectangle per text line covered by the owning glyphs.
func lineRects(glyphs []Glyph, owners []int) []Rect {
	var (
		rects []Rect
		cur   Rect
		line  Glyph
		open  bool
		last  = -1
	)
	for _, idx := range owners {
		if idx < 0 || idx == last {
			continue
		}
		last = idx
		g := glyphs[idx]
		r := glyphRect(g)
		if open && sameLine(line, g) {
			cur = cur.Union(r)
			continue
		}
		if open {
			rects = append(rects, cur)
		}
		cur, line, open = r, g, true
	}
	if open {
		rects = append(rects, cur)
	}
	return rects
}

func glyphRect(g Glyph) Rect {
	fs := fontSize(g)
	return Rect{
		LLX: g.X,
		LLY: g.Y - 0.2*fs,
		URX: g.X + math.Max(g.W, 0),
		URY: g.Y + 0.8*fs,
	}
}
