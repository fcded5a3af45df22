package views

import (
	"html/template"

	"github.com/eringen/nebula"
)

// page is the data every template receives.
type page struct {
	Site   nebula.SiteConfig
	Meta   nebula.PageMeta
	JSONLD template.JS
	CSRF   string
	Admin  bool
}

type homePage struct {
	page
	Posts     []nebula.BlogPost
	Tags      []string
	ActiveTag string
}

type postPage struct {
	page
	Post    nebula.BlogPost
	Related []nebula.BlogPost
}

type loginPage struct {
	page
	ShowError bool
}

type dashboardPage struct {
	page
	Posts     []nebula.BlogPost
	Status    nebula.PostStatus
	Statuses  []nebula.PostStatus
	Schedules []nebula.ScheduleConfig
	Sources   []string
}

type errorPage struct {
	page
	Code    int
	Message string
}
