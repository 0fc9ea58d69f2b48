package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/a2zsellr/backend/internal/domain/messaging"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var subjects = map[messaging.Template]string{
	messaging.TemplateWelcome:               "Welcome to A2Z Sellr",
	messaging.TemplateListingActivated:      "Your listing is live on A2Z Sellr",
	messaging.TemplateSubscriptionActivated: "Your A2Z Sellr subscription is active",
	messaging.TemplateContentReset:          "Your free A2Z Sellr profile has been refreshed",
}

// TemplateData is the input to every email template. Fields a template
// does not use are ignored.
type TemplateData struct {
	Email string
	Name  string

	ListingTitle string
	ListingURL   string

	Tier      string
	Amount    string
	Reference string

	ProductsDeleted   int
	ListingsDeleted   int
	GalleryDeleted    int
	ResetIntervalDays int
}

// view adds the URLs derived from the app URL
type view struct {
	TemplateData
	Subject      string
	AppURL       string
	DashboardURL string
	UpgradeURL   string
}

// Renderer turns TemplateData into HTML and text message bodies
type Renderer struct {
	appURL string
	html   map[messaging.Template]*htmltemplate.Template
	text   map[messaging.Template]*texttemplate.Template
}

// NewRenderer parses the embedded templates. appURL is NEXT_PUBLIC_APP_URL.
func NewRenderer(appURL string) (*Renderer, error) {
	r := &Renderer{
		appURL: strings.TrimRight(appURL, "/"),
		html:   make(map[messaging.Template]*htmltemplate.Template, len(subjects)),
		text:   make(map[messaging.Template]*texttemplate.Template, len(subjects)),
	}
	funcs := map[string]any{"title": titleCase}

	for name := range subjects {
		h, err := htmltemplate.New(string(name)+".html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+string(name)+".html")
		if err != nil {
			return nil, fmt.Errorf("email: failed to parse %s html template: %w", name, err)
		}
		t, err := texttemplate.New(string(name)+".txt").Funcs(funcs).
			ParseFS(templateFS, "templates/"+string(name)+".txt")
		if err != nil {
			return nil, fmt.Errorf("email: failed to parse %s text template: %w", name, err)
		}
		r.html[name] = h
		r.text[name] = t
	}
	return r, nil
}

// Render builds the message for tmpl addressed to data.Email
func (r *Renderer) Render(tmpl messaging.Template, data TemplateData) (messaging.Message, error) {
	h, ok := r.html[tmpl]
	if !ok {
		return messaging.Message{}, fmt.Errorf("email: unknown template %q", tmpl)
	}

	v := view{
		TemplateData: data,
		Subject:      subjects[tmpl],
		AppURL:       r.appURL,
		DashboardURL: r.appURL + "/dashboard",
		UpgradeURL:   r.appURL + "/pricing",
	}
	if v.ListingURL == "" {
		v.ListingURL = v.DashboardURL
	}

	var html, text bytes.Buffer
	if err := h.Execute(&html, v); err != nil {
		return messaging.Message{}, fmt.Errorf("email: failed to render %s: %w", tmpl, err)
	}
	if err := r.text[tmpl].Execute(&text, v); err != nil {
		return messaging.Message{}, fmt.Errorf("email: failed to render %s: %w", tmpl, err)
	}

	return messaging.Message{
		ToEmail:  data.Email,
		ToName:   data.Name,
		Subject:  v.Subject,
		HTMLBody: html.String(),
		TextBody: text.String(),
		Tags:     map[string]string{"template": string(tmpl)},
	}, nil
}

// titleCase capitalizes each word of a name using Unicode-aware rules
func titleCase(s string) string {
	caser := cases.Title(language.English)
	return caser.String(strings.TrimSpace(s))
}
