package service

import (
	"context"

	"blogapi/internal/models"
	"blogapi/internal/repository"
)

type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	AuthorID  uint
	Content   string
	VisibleTo string
}

type UpdatePostInput struct {
	Actor     *models.User
	PostID    uint
	Content   *string
	VisibleTo *string
}

type DeletePostInput struct {
	Actor  *models.User
	PostID uint
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

// CreatePost stores a post authored by in.AuthorID, always the session user.
// Empty content is allowed; callers reject a request that omits it.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.BlogPost, error) {
	if in.AuthorID == 0 {
		return nil, models.NewAuthenticationRequiredError()
	}

	post := &models.BlogPost{
		AuthorID:  in.AuthorID,
		Content:   in.Content,
		VisibleTo: in.VisibleTo,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns every post to admins and the visible_to matches to everyone else.
func (s *PostService) ListPosts(ctx context.Context, viewer *models.User) ([]models.BlogPost, error) {
	if viewer == nil {
		return nil, models.NewAuthenticationRequiredError()
	}
	if viewer.IsAdmin {
		return s.postRepo.List(ctx, repository.AllPosts())
	}
	return s.postRepo.List(ctx, repository.VisibleTo(viewer.ID))
}

// ListAllPosts backs the public index page, which shows everything.
func (s *PostService) ListAllPosts(ctx context.Context) ([]models.BlogPost, error) {
	return s.postRepo.List(ctx, repository.AllPosts())
}

// GetPost is not filtered by visibility.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.BlogPost, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Blog post", id)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) error {
	if in.Actor == nil {
		return models.NewAuthenticationRequiredError()
	}
	if in.Content == nil && in.VisibleTo == nil {
		return models.NewValidationError("content or visible_to is required")
	}

	post, err := s.GetPost(ctx, in.PostID)
	if err != nil {
		return err
	}
	if !in.Actor.CanModify(post.AuthorID) {
		return models.NewForbiddenError("You can only update your own posts")
	}

	return s.postRepo.Update(ctx, in.PostID, repository.PostUpdate{
		Content:   in.Content,
		VisibleTo: in.VisibleTo,
	})
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	if in.Actor == nil {
		return models.NewAuthenticationRequiredError()
	}

	post, err := s.GetPost(ctx, in.PostID)
	if err != nil {
		return err
	}
	if !in.Actor.CanModify(post.AuthorID) {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	return s.postRepo.Delete(ctx, in.PostID)
}
