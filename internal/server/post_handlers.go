package server

import (
	"time"

	"blogapi/internal/models"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postResponse struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newPostResponse(p *models.BlogPost) postResponse {
	return postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}
}

// Pointer fields tell "absent" apart from "empty".
type postRequest struct {
	Content   *string `json:"content"`
	VisibleTo *string `json:"visible_to"`
}

// CreatePost handles POST /api/blog
// @Summary Create a blog post
// @Description The author is always the session user
// @Tags blog
// @Accept json
// @Produce json
// @Param request body object{content=string,visible_to=string} true "Post"
// @Success 201 {object} object{id=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /blog [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	if err := s.requireJSON(c); err != nil {
		return nil
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil || req.Content == nil {
		return s.respondError(c, models.NewValidationError("Invalid data"))
	}

	in := service.CreatePostInput{
		AuthorID: currentUser(c).ID,
		Content:  *req.Content,
	}
	if req.VisibleTo != nil {
		in.VisibleTo = *req.VisibleTo
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	s.metrics.RecordPostMutation("create")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": post.ID})
}

// ListPosts handles GET /api/blog
// @Summary List blog posts
// @Description Admins see every post. Other users see posts whose visible_to contains their id.
// @Tags blog
// @Produce json
// @Success 200 {array} postResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /blog [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext(), currentUser(c))
	if err != nil {
		return s.respondError(c, err)
	}

	out := make([]postResponse, 0, len(posts))
	for i := range posts {
		out = append(out, newPostResponse(&posts[i]))
	}
	return c.JSON(out)
}

// GetPost handles GET /api/blog/:id
// @Summary Get a blog post
// @Description Public and not filtered by visible_to
// @Tags blog
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} postResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /blog/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parsePostID(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(newPostResponse(post))
}

// UpdatePost handles PATCH /api/blog/:id
// @Summary Update a blog post
// @Tags blog
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string,visible_to=string} true "Fields to change"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /blog/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parsePostID(c)
	if err != nil {
		return nil
	}
	if err := s.requireJSON(c); err != nil {
		return nil
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, models.NewValidationError("Invalid data"))
	}

	err = s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		Actor:     currentUser(c),
		PostID:    id,
		Content:   req.Content,
		VisibleTo: req.VisibleTo,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	s.metrics.RecordPostMutation("update")

	return c.JSON(fiber.Map{"message": "Blog post updated"})
}

// DeletePost handles DELETE /api/blog/:id
// @Summary Delete a blog post
// @Tags blog
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /blog/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parsePostID(c)
	if err != nil {
		return nil
	}

	err = s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		Actor:  currentUser(c),
		PostID: id,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	s.metrics.RecordPostMutation("delete")

	return c.JSON(fiber.Map{"message": "Blog post deleted"})
}
