package server

import (
	"errors"
	"log/slog"

	"blogapi/internal/models"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	msgRegistered      = "Registration successful! You can now log in."
	msgUsernameTaken   = "Username already exists. Please choose another one."
	msgLoginFailed     = "Login failed. Check your username and/or password."
	msgInvalidFormBody = "Invalid form submission"
)

// Index lists every post, newest first.
func (s *Server) Index(c *fiber.Ctx) error {
	posts, err := s.postService.ListAllPosts(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return s.render(c, fiber.StatusOK, pageIndex, &htmlData{Title: "Posts", Posts: posts})
}

func (s *Server) RegisterPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, pageRegister, &htmlData{Title: "Register"})
}

// RegisterForm creates an account from the HTML form and sends the user to the login page.
func (s *Server) RegisterForm(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return s.render(c, fiber.StatusBadRequest, pageRegister, &htmlData{
			Title:     "Register",
			FormError: msgInvalidFormBody,
		})
	}

	_, err := s.authService.Register(c.UserContext(), service.RegisterInput(req))
	s.metrics.RecordAuth("register", outcome(err))
	if err != nil {
		msg, ok := clientMessage(err)
		if !ok {
			return s.respondError(c, err)
		}
		if models.HasCode(err, models.CodeConflict) {
			msg = msgUsernameTaken
		}
		return s.render(c, models.StatusCode(err), pageRegister, &htmlData{
			Title:     "Register",
			FormError: msg,
			FormData:  map[string]string{"username": req.Username},
		})
	}

	if err := s.sessions.AddFlash(c, msgRegistered); err != nil {
		s.logger.WarnContext(c.UserContext(), "failed to store flash", slog.String("error", err.Error()))
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}

func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, pageLogin, &htmlData{Title: "Log in"})
}

// LoginForm accepts a form post or a JSON body. Either way a successful login
// redirects to the index.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	asJSON := wantsJSON(c)

	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		if asJSON {
			return s.respondError(c, models.NewValidationError("Invalid request body"))
		}
		return s.render(c, fiber.StatusBadRequest, pageLogin, &htmlData{
			Title:     "Log in",
			FormError: msgInvalidFormBody,
		})
	}

	if _, err := s.authenticate(c, req); err != nil {
		if _, ok := clientMessage(err); !ok || asJSON {
			return s.respondError(c, err)
		}
		return s.render(c, models.StatusCode(err), pageLogin, &htmlData{
			Title:     "Log in",
			FormError: msgLoginFailed,
			FormData:  map[string]string{"username": req.Username},
		})
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.sessions.Logout(c); err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}
	s.metrics.RecordAuth("logout", "success")
	return c.Redirect("/", fiber.StatusSeeOther)
}

// CreatePostForm publishes a post from the index page form as the session user.
func (s *Server) CreatePostForm(c *fiber.Ctx) error {
	if !hasFormField(c, "content") {
		return s.renderIndexError(c, models.NewValidationError("content is required"))
	}

	in := service.CreatePostInput{
		AuthorID:  currentUser(c).ID,
		Content:   c.FormValue("content"),
		VisibleTo: c.FormValue("visible_to"),
	}

	if _, err := s.postService.CreatePost(c.UserContext(), in); err != nil {
		return s.renderIndexError(c, err)
	}
	s.metrics.RecordPostMutation("create")

	return c.Redirect("/", fiber.StatusSeeOther)
}

// renderIndexError re-renders the index with the form error of a 4xx AppError.
func (s *Server) renderIndexError(c *fiber.Ctx, err error) error {
	msg, ok := clientMessage(err)
	if !ok {
		return s.respondError(c, err)
	}
	posts, listErr := s.postService.ListAllPosts(c.UserContext())
	if listErr != nil {
		return s.respondError(c, listErr)
	}
	return s.render(c, models.StatusCode(err), pageIndex, &htmlData{
		Title:     "Posts",
		FormError: msg,
		Posts:     posts,
	})
}

// hasFormField reports whether key was sent, even with an empty value.
func hasFormField(c *fiber.Ctx, key string) bool {
	if c.Request().PostArgs().Has(key) {
		return true
	}
	form, err := c.MultipartForm()
	if err != nil {
		return false
	}
	_, ok := form.Value[key]
	return ok
}

// clientMessage returns the user-facing message of a 4xx AppError.
func clientMessage(err error) (string, bool) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || models.StatusCode(err) >= fiber.StatusInternalServerError {
		return "", false
	}
	return appErr.Message, true
}
