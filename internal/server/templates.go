package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"path"
	"time"

	"blogapi/internal/models"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex    = "index.page.html"
	pageLogin    = "login.page.html"
	pageRegister = "register.page.html"
)

type htmlData struct {
	Title       string
	Path        string
	FormError   string
	FormData    map[string]string
	Flashes     []string
	CurrentUser *models.User
	Posts       []models.BlogPost
}

var functions = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
}

// parseTemplates builds one template set per page: the base layout, every
// partial, then the page itself.
func parseTemplates() (map[string]*template.Template, error) {
	views := make(map[string]*template.Template)
	for _, page := range []string{pageIndex, pageLogin, pageRegister} {
		ts, err := template.New(page).Funcs(functions).ParseFS(templateFS,
			path.Join("templates", "base.layout.html"),
			path.Join("templates", "*.partial.html"),
			path.Join("templates", page),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", page, err)
		}
		views[page] = ts
	}
	return views, nil
}

// render executes page into a buffer first so a template error never leaves
// a half-written response.
func (s *Server) render(c *fiber.Ctx, status int, page string, data *htmlData) error {
	ts, ok := s.views[page]
	if !ok {
		return s.respondError(c, models.NewInternalError(fmt.Errorf("template %s not found", page)))
	}
	if data == nil {
		data = &htmlData{}
	}

	data.Path = c.Path()
	if data.CurrentUser == nil {
		data.CurrentUser = currentUser(c)
	}

	flashes, err := s.sessions.Flashes(c)
	if err != nil {
		s.logger.WarnContext(c.UserContext(), "failed to read flashes", slog.String("error", err.Error()))
	}
	data.Flashes = append(flashes, data.Flashes...)

	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", data); err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}

	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}
