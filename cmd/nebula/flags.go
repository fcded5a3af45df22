package main

import (
	"github.com/spf13/pflag"

	"github.com/eringen/nebula/content"
)

// contentFlags are the ContentConfig knobs shared by generate and schedule add.
type contentFlags struct {
	images   int
	faq      bool
	sections int
	carousel bool
	source   string
}

func (c *contentFlags) register(f *pflag.FlagSet) {
	f.IntVar(&c.images, "images", 1, "Number of images; the first is the cover (0-5)")
	f.BoolVar(&c.faq, "faq", false, "Append a FAQ section")
	f.IntVar(&c.sections, "sections", content.DefaultSectionCount, "Number of main sections (1-15)")
	f.BoolVar(&c.carousel, "carousel", false, "Show images as a carousel")
	f.StringVar(&c.source, "source", string(content.SourceAI), "Image source: AI, SEARCH or BOTH")
}

func (c *contentFlags) config() (content.ContentConfig, error) {
	src, err := content.ParseImageSource(c.source)
	if err != nil {
		return content.ContentConfig{}, err
	}
	cfg := content.ContentConfig{
		ImageCount:   c.images,
		IncludeFAQ:   c.faq,
		SectionCount: c.sections,
		UseCarousel:  c.carousel,
		ImageSource:  src,
	}
	return cfg, cfg.Validate()
}
