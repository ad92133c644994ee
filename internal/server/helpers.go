package server

import (
	"errors"

	"blogapi/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parsePostID reads the :id route parameter. A non-numeric id is a 400. Zero
// and negative ids can never match a row, so they are reported as a missing
// post. On failure the response is already written and errResponseWritten
// is returned. Callers should check: if err != nil { return nil }
func (s *Server) parsePostID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		_ = s.respondError(c, models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	if id <= 0 {
		_ = s.respondError(c, models.NewNotFoundError("Blog post", c.Params("id")))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// requireJSON writes a 400 unless the request declares a JSON body.
func (s *Server) requireJSON(c *fiber.Ctx) error {
	if !c.Is("json") || len(c.Body()) == 0 {
		_ = s.respondError(c, models.NewValidationError("Invalid data"))
		return errResponseWritten
	}
	return nil
}

// wantsJSON reports whether a form endpoint was called with a JSON body.
func wantsJSON(c *fiber.Ctx) bool {
	return c.Is("json")
}

// outcome labels metrics by success.
func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
