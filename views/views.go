// Package views renders nebula's pages. Templates are embedded html/template
// files exposed as templ components.
package views

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/a-h/templ"

	"github.com/eringen/nebula"
	"github.com/eringen/nebula/content"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	homeTmpl      = parsePage("home.html")
	postTmpl      = parsePage("post.html")
	loginTmpl     = parsePage("admin_login.html")
	dashboardTmpl = parsePage("admin_dashboard.html")
	errorTmpl     = parsePage("error.html")
)

func parsePage(name string) *template.Template {
	return template.Must(template.New("layout.html").Funcs(funcs).
		ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// New returns the view set for a site.
func New(cfg nebula.SiteConfig) nebula.ViewFuncs {
	return nebula.ViewFuncs{
		Home: func(posts []nebula.BlogPost, activeTag string, tags []string, cfg nebula.SiteConfig) templ.Component {
			return Home(posts, activeTag, tags, cfg)
		},
		Post: Post,
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return AdminLogin(cfg, showError, csrfToken)
		},
		AdminDashboard: func(posts []nebula.BlogPost, status nebula.PostStatus, schedules []nebula.ScheduleConfig, csrfToken string) templ.Component {
			return AdminDashboard(cfg, posts, status, schedules, csrfToken)
		},
		NotFound:    func() templ.Component { return NotFound(cfg) },
		ServerError: func() templ.Component { return ServerError(cfg) },
	}
}

// Home lists published posts, optionally narrowed to one tag.
func Home(posts []nebula.BlogPost, activeTag string, tags []string, cfg nebula.SiteConfig) templ.Component {
	return templ.FromGoHTML(homeTmpl, homePage{
		page: page{
			Site:   cfg,
			Meta:   homeMeta(cfg, activeTag),
			JSONLD: template.JS(nebula.WebsiteJsonLD(cfg)),
		},
		Posts:     posts,
		Tags:      tags,
		ActiveTag: activeTag,
	})
}

// Post renders a single post with its image carousel and related posts.
func Post(post nebula.BlogPost, related []nebula.BlogPost, cfg nebula.SiteConfig) templ.Component {
	if len(related) > 3 {
		related = related[:3]
	}
	return templ.FromGoHTML(postTmpl, postPage{
		page: page{
			Site:   cfg,
			Meta:   postMeta(cfg, post),
			JSONLD: template.JS(nebula.BlogPostingJsonLD(post, cfg)),
		},
		Post:    post,
		Related: related,
	})
}

// AdminLogin is the password form.
func AdminLogin(cfg nebula.SiteConfig, showError bool, csrfToken string) templ.Component {
	return templ.FromGoHTML(loginTmpl, loginPage{
		page: page{
			Site: cfg,
			Meta: nebula.PageMeta{Title: "Login | " + cfg.Name},
			CSRF: csrfToken,
		},
		ShowError: showError,
	})
}

// AdminDashboard lists posts and schedules and hosts the generate form.
func AdminDashboard(cfg nebula.SiteConfig, posts []nebula.BlogPost, status nebula.PostStatus, schedules []nebula.ScheduleConfig, csrfToken string) templ.Component {
	return templ.FromGoHTML(dashboardTmpl, dashboardPage{
		page: page{
			Site:  cfg,
			Meta:  nebula.PageMeta{Title: "Dashboard | " + cfg.Name},
			CSRF:  csrfToken,
			Admin: true,
		},
		Posts:     posts,
		Status:    status,
		Statuses:  []nebula.PostStatus{nebula.StatusDraft, nebula.StatusPublished, nebula.StatusScheduled},
		Schedules: schedules,
		Sources:   []string{string(content.SourceAI), string(content.SourceSearch), string(content.SourceBoth)},
	})
}

// NotFound is the 404 page.
func NotFound(cfg nebula.SiteConfig) templ.Component {
	return errorComponent(cfg, http.StatusNotFound, "The page you are looking for does not exist.")
}

// ServerError is the 500 page.
func ServerError(cfg nebula.SiteConfig) templ.Component {
	return errorComponent(cfg, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func errorComponent(cfg nebula.SiteConfig, code int, msg string) templ.Component {
	return templ.FromGoHTML(errorTmpl, errorPage{
		page:    page{Site: cfg, Meta: nebula.PageMeta{Title: http.StatusText(code) + " | " + cfg.Name}},
		Code:    code,
		Message: msg,
	})
}
