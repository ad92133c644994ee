package server

import "github.com/gofiber/fiber/v2"

type endpointDoc struct {
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	LoginNeeded bool              `json:"login_required"`
	Payload     map[string]string `json:"payload,omitempty"`
	Response    map[string]string `json:"response,omitempty"`
}

type apiDoc struct {
	Description   string        `json:"description"`
	Endpoints     []endpointDoc `json:"endpoints"`
	Authorization string        `json:"authorization"`
}

var aboutDoc = apiDoc{
	Description: "This API lets users manage blog posts.",
	Endpoints: []endpointDoc{
		{
			Path:        "/api/register",
			Method:      fiber.MethodPost,
			Description: "Register a new user.",
			Payload:     map[string]string{"username": "string, unique", "password": "string"},
			Response:    map[string]string{"success": "boolean", "message": "string", "id": "integer"},
		},
		{
			Path:        "/api/login",
			Method:      fiber.MethodPost,
			Description: "Log in and receive a session cookie.",
			Payload:     map[string]string{"username": "string", "password": "string"},
			Response:    map[string]string{"success": "boolean", "message": "string"},
		},
		{
			Path:        "/api/logout",
			Method:      fiber.MethodGet,
			Description: "Log out and destroy the session.",
			LoginNeeded: true,
			Response:    map[string]string{"message": "string"},
		},
		{
			Path:        "/api/blog",
			Method:      fiber.MethodPost,
			Description: "Create a blog post authored by the session user.",
			LoginNeeded: true,
			Payload:     map[string]string{"content": "string, required", "visible_to": "string, comma separated user ids"},
			Response:    map[string]string{"id": "integer"},
		},
		{
			Path:        "/api/blog",
			Method:      fiber.MethodGet,
			Description: "List posts, newest first. Admins see every post, other users see posts whose visible_to contains their id.",
			LoginNeeded: true,
			Response:    map[string]string{"[]": "{id, author_id, content, created_at}"},
		},
		{
			Path:        "/api/blog/{id}",
			Method:      fiber.MethodGet,
			Description: "Get a single post by id.",
			Response:    map[string]string{"id": "integer", "author_id": "integer", "content": "string", "created_at": "RFC 3339 timestamp"},
		},
		{
			Path:        "/api/blog/{id}",
			Method:      fiber.MethodPatch,
			Description: "Update a post. Only the author or an admin may do this.",
			LoginNeeded: true,
			Payload:     map[string]string{"content": "string", "visible_to": "string"},
			Response:    map[string]string{"message": "string"},
		},
		{
			Path:        "/api/blog/{id}",
			Method:      fiber.MethodDelete,
			Description: "Delete a post. Only the author or an admin may do this.",
			LoginNeeded: true,
			Response:    map[string]string{"message": "string"},
		},
		{
			Path:        "/api/about",
			Method:      fiber.MethodGet,
			Description: "Show this documentation.",
		},
	},
	Authorization: "Protected endpoints require the session cookie issued by /api/login or /login.",
}

// About handles GET /api/about
// @Summary API overview
// @Tags meta
// @Produce json
// @Success 200 {object} apiDoc
// @Router /about [get]
func (s *Server) About(c *fiber.Ctx) error {
	return c.JSON(aboutDoc)
}
