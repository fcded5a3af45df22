package content

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// placeholderMarker is the part every placeholder token shares.
const placeholderMarker = "IMAGE_PLACEHOLDER_"

// Tolerates the bracketed form the model is asked for as well as bare or
// half-bracketed variants, so that no marker text survives rendering.
var placeholderRe = regexp.MustCompile(`\[{0,2}IMAGE_PLACEHOLDER_(\d*)\]{0,2}`)

// PlaceholderToken returns the body token for image slot n.
func PlaceholderToken(n int) string {
	return "[[" + placeholderMarker + strconv.Itoa(n) + "]]"
}

// Segment is one piece of a parsed body: either literal markdown or an
// image slot. Slot is zero for text segments.
type Segment struct {
	Text string
	Slot int
}

// IsSlot reports whether the segment is an image slot.
func (s Segment) IsSlot() bool { return s.Text == "" && s.Slot != 0 }

// Body is a markdown document split into text and image slots.
type Body struct {
	Segments []Segment
}

// ParseBody splits markdown into text and image-slot segments. Malformed
// tokens become slot -1 so they are dropped on render.
func ParseBody(markdown string) Body {
	var b Body
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(markdown, -1) {
		if m[0] > last {
			b.Segments = append(b.Segments, Segment{Text: markdown[last:m[0]]})
		}
		n, err := strconv.Atoi(markdown[m[2]:m[3]])
		if err != nil || n <= 0 {
			n = -1
		}
		b.Segments = append(b.Segments, Segment{Slot: n})
		last = m[1]
	}
	if last < len(markdown) {
		b.Segments = append(b.Segments, Segment{Text: markdown[last:]})
	}
	return b
}

// Slots returns slot numbers in order of appearance, duplicates included.
func (b Body) Slots() []int {
	var out []int
	for _, s := range b.Segments {
		if s.IsSlot() && s.Slot > 0 {
			out = append(out, s.Slot)
		}
	}
	return out
}

// String re-emits the body with canonical placeholder tokens.
func (b Body) String() string {
	var sb strings.Builder
	for _, s := range b.Segments {
		if s.IsSlot() {
			if s.Slot > 0 {
				sb.WriteString(PlaceholderToken(s.Slot))
			}
			continue
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// joinLines is String, except that a heading glued to a slot, kept or
// removed, is moved onto its own line.
func (b Body) joinLines() string {
	var sb strings.Builder
	afterSlot := false
	for _, s := range b.Segments {
		if s.IsSlot() {
			if s.Slot > 0 {
				sb.WriteString(PlaceholderToken(s.Slot))
			}
			afterSlot = true
			continue
		}
		if afterSlot && strings.HasPrefix(strings.TrimLeft(s.Text, " "), "#") &&
			sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n\n")
		}
		afterSlot = false
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Render replaces slot i (1 <= i < len(images)) with an image embed and drops
// every other slot. Index 0 is the cover and is never embedded.
func (b Body) Render(images []string, title string) string {
	alt := cleanAlt(title)
	var sb strings.Builder
	for _, s := range b.Segments {
		if !s.IsSlot() {
			sb.WriteString(s.Text)
			continue
		}
		if s.Slot < 1 || s.Slot >= len(images) {
			continue
		}
		ref := strings.TrimSpace(images[s.Slot])
		if ref == "" || strings.Contains(ref, placeholderMarker) {
			continue
		}
		fmt.Fprintf(&sb, "\n\n![%s - Image %d](%s)\n\n", alt, s.Slot, ref)
	}
	return sb.String()
}

// SubstituteImages splices images into markdown by slot number and removes
// any slot without an image. Running it on its own output changes nothing.
func SubstituteImages(markdown, title string, images []string) string {
	return ParseBody(markdown).Render(images, title)
}

// HasPlaceholders reports whether any placeholder marker remains in s.
func HasPlaceholders(s string) bool {
	return strings.Contains(s, placeholderMarker)
}

func cleanAlt(title string) string {
	title = placeholderRe.ReplaceAllString(title, "")
	title = strings.NewReplacer("[", "", "]", "", "\n", " ").Replace(title)
	return strings.TrimSpace(title)
}

// NormalizePlaceholders rewrites body so that it carries exactly one token for
// each slot 1..want. Duplicates and out-of-range tokens are removed, tokens at
// the very start or end are moved inward and missing ones are inserted at
// interior section boundaries. A body with no interior position keeps only
// the tokens it can hold.
func NormalizePlaceholders(body string, want int) string {
	parsed := ParseBody(body)
	if want <= 0 {
		return parsed.Render(nil, "")
	}

	// Removed slots stay in segs as -1 so that joinLines can see where they were.
	seen := make(map[int]bool, want)
	segs := make([]Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		if s.IsSlot() {
			if s.Slot < 1 || s.Slot > want || seen[s.Slot] {
				s.Slot = -1
			} else {
				seen[s.Slot] = true
			}
		}
		segs = append(segs, s)
	}

	// Slots with only whitespace before or after them sit at an edge.
	first, last := -1, -1
	for i, s := range segs {
		if !s.IsSlot() && strings.TrimSpace(s.Text) != "" {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	for i, s := range segs {
		if s.IsSlot() && s.Slot > 0 && (first < 0 || i < first || i > last) {
			delete(seen, s.Slot)
			segs[i].Slot = -1
		}
	}

	var missing []int
	for n := 1; n <= want; n++ {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	text := Body{Segments: segs}.joinLines()
	if len(missing) == 0 {
		return text
	}
	return insertTokens(text, missing)
}

// insertTokens places tokens for slots at interior boundaries of text,
// spread evenly from top to bottom.
func insertTokens(text string, slots []int) string {
	bounds := interiorBoundaries(text)
	if len(bounds) == 0 {
		return text
	}
	at := make(map[int][]int)
	for k, n := range slots {
		off := bounds[k*len(bounds)/len(slots)]
		at[off] = append(at[off], n)
	}
	offsets := make([]int, 0, len(at))
	for off := range at {
		offsets = append(offsets, off)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))
	for _, off := range offsets {
		var sb strings.Builder
		for _, n := range at[off] {
			sb.WriteString(PlaceholderToken(n))
			sb.WriteString("\n\n")
		}
		text = text[:off] + sb.String() + text[off:]
	}
	return text
}

// interiorBoundaries returns byte offsets of H2 headings that have content
// before them. Bodies without such headings fall back to paragraph breaks.
// Nothing inside a code fence counts.
func interiorBoundaries(text string) []int {
	var heads, paras []int
	seenContent, inFence := false, false
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if seenContent && !inFence && !strings.HasPrefix(trimmed, "```") {
			if isH2(line) {
				heads = append(heads, off)
			} else if trimmed == "" && off+len(line) < len(text) && strings.TrimSpace(text[off+len(line):]) != "" {
				paras = append(paras, off+len(line))
			}
		}
		if trimmed != "" {
			seenContent = true
		}
		off += len(line)
	}
	if len(heads) > 0 {
		return heads
	}
	return dedupe(paras)
}

func dedupe(in []int) []int {
	out := in[:0:0]
	for i, v := range in {
		if i > 0 && in[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
