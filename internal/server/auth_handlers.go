package server

import (
	"blogapi/internal/models"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Register handles POST /api/register
// @Summary Register a user
// @Description Create a new non-admin account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 201 {object} object{success=bool,message=string,id=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput(req))
	s.metrics.RecordAuth("register", outcome(err))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful",
		"id":      user.ID,
	})
}

// Login handles POST /api/login
// @Summary Log in
// @Description Verify credentials and start a cookie session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} object{success=bool,message=string}
// @Failure 401 {object} object{success=bool,message=string}
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	user, err := s.authenticate(c, req)
	if err != nil {
		msg, ok := clientMessage(err)
		if !ok {
			return s.respondError(c, err)
		}
		return c.Status(models.StatusCode(err)).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"id":      user.ID,
	})
}

// LogoutAPI handles GET /api/logout
// @Summary Log out
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /logout [get]
func (s *Server) LogoutAPI(c *fiber.Ctx) error {
	if err := s.sessions.Logout(c); err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}
	s.metrics.RecordAuth("logout", "success")
	return c.JSON(fiber.Map{"message": "Logout successful"})
}

// authenticate checks credentials and, on success, binds the user to a fresh session.
func (s *Server) authenticate(c *fiber.Ctx, req credentialsRequest) (*models.User, error) {
	user, err := s.authService.Authenticate(c.UserContext(), service.LoginInput(req))
	s.metrics.RecordAuth("login", outcome(err))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Login(c, user.ID); err != nil {
		return nil, models.NewInternalError(err)
	}
	return user, nil
}
