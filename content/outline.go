package content

import (
	"strings"
)

// Outline summarizes the structure of a markdown body.
type Outline struct {
	Sections     int // H2 sections other than the FAQ
	HasFAQ       bool
	FAQLast      bool  // FAQ is the final H2 section
	FAQPairs     int   // H3 questions inside the FAQ
	Placeholders []int // slot numbers in order of appearance
}

// Matches returns a short description of every way o differs from the shape
// cfg asks for. An empty result means the body matches.
func (o Outline) Matches(cfg ContentConfig) []string {
	cfg = cfg.WithDefaults()
	var problems []string
	if o.Sections != cfg.SectionCount {
		problems = append(problems, "section count")
	}
	if cfg.IncludeFAQ {
		switch {
		case !o.HasFAQ:
			problems = append(problems, "missing FAQ")
		case !o.FAQLast:
			problems = append(problems, "FAQ not last")
		case o.FAQPairs < 3:
			problems = append(problems, "too few FAQ pairs")
		}
	}
	if len(o.Placeholders) != cfg.BodyImages() {
		problems = append(problems, "placeholder count")
	}
	return problems
}

type section struct {
	heading string
	text    string // includes the heading line
}

func isH2(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "## ")
}

func isH3(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "### ")
}

func isFAQHeading(heading string) bool {
	h := strings.ToLower(heading)
	return strings.Contains(h, "frequently asked") || strings.Contains(h, "faq")
}

// splitSections cuts body at H2 headings. Lines inside fenced code blocks
// never start a section.
func splitSections(body string) (preamble string, sections []section) {
	var cur *section
	var pre strings.Builder
	inFence := false
	for _, line := range strings.SplitAfter(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence && isH2(line) {
			sections = append(sections, section{heading: strings.TrimSpace(strings.TrimLeft(line, " #"))})
			cur = &sections[len(sections)-1]
		}
		if cur == nil {
			pre.WriteString(line)
			continue
		}
		cur.text += line
	}
	return pre.String(), sections
}

// OutlineOf reports the structure of body.
func OutlineOf(body string) Outline {
	o := Outline{Placeholders: ParseBody(body).Slots()}
	_, sections := splitSections(body)
	for i, s := range sections {
		if !isFAQHeading(s.heading) {
			o.Sections++
			continue
		}
		o.HasFAQ = true
		o.FAQLast = i == len(sections)-1
		o.FAQPairs = 0
		for _, line := range strings.Split(s.text, "\n") {
			if isH3(line) {
				o.FAQPairs++
			}
		}
	}
	return o
}

// moveFAQLast moves an interleaved FAQ section after all other sections. The
// body is returned unchanged when there is nothing to move.
func moveFAQLast(body string) string {
	preamble, sections := splitSections(body)
	faq := -1
	for i, s := range sections {
		if isFAQHeading(s.heading) {
			faq = i
			break
		}
	}
	if faq < 0 || faq == len(sections)-1 {
		return body
	}
	ordered := make([]section, 0, len(sections))
	ordered = append(ordered, sections[:faq]...)
	ordered = append(ordered, sections[faq+1:]...)
	ordered = append(ordered, sections[faq])

	parts := make([]string, 0, len(ordered)+1)
	if p := strings.TrimSpace(preamble); p != "" {
		parts = append(parts, p)
	}
	for _, s := range ordered {
		parts = append(parts, strings.TrimSpace(s.text))
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// NormalizeBody applies the structural fixes the generated body needs before
// images are spliced in: FAQ last, then exactly one token per body image.
func NormalizeBody(body string, cfg ContentConfig) string {
	cfg = cfg.WithDefaults()
	if cfg.IncludeFAQ {
		body = moveFAQLast(body)
	}
	return NormalizePlaceholders(body, cfg.BodyImages())
}
