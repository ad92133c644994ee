package repository

import (
	"context"
	"errors"
	"strconv"

	"blogapi/internal/cache"
	"blogapi/internal/models"

	"gorm.io/gorm"
)

// PostFilter selects which posts List returns.
type PostFilter struct {
	all      bool
	viewerID uint
}

// AllPosts matches every post.
func AllPosts() PostFilter {
	return PostFilter{all: true}
}

// VisibleTo matches posts whose visible_to text contains the decimal form of
// userID anywhere, so 1 also matches "12".
func VisibleTo(userID uint) PostFilter {
	return PostFilter{viewerID: userID}
}

// PostUpdate carries the mutable fields of a post. Nil fields are left alone.
type PostUpdate struct {
	Content   *string
	VisibleTo *string
}

func (u PostUpdate) columns() map[string]any {
	cols := make(map[string]any, 2)
	if u.Content != nil {
		cols["content"] = *u.Content
	}
	if u.VisibleTo != nil {
		cols["visible_to"] = *u.VisibleTo
	}
	return cols
}

// PostRepository defines persistence operations for blog posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.BlogPost) error
	// GetByID returns nil, nil when no post has id.
	GetByID(ctx context.Context, id uint) (*models.BlogPost, error)
	// List orders newest first, ties broken by id.
	List(ctx context.Context, filter PostFilter) ([]models.BlogPost, error)
	Update(ctx context.Context, id uint, update PostUpdate) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewPostRepository returns a new PostRepository implementation. c may be nil.
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{db: db, cache: c}
}

// Create stamps created_at from the store clock, ignoring any value on post.
func (r *postRepository) Create(ctx context.Context, post *models.BlogPost) error {
	post.ID = 0
	post.CreatedAt = r.db.NowFunc()
	if err := r.db.WithContext(ctx).Omit("Author").Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	var post models.BlogPost

	err := r.cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).First(&post, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]models.BlogPost, error) {
	posts := make([]models.BlogPost, 0)
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if !filter.all {
		query = query.Where("visible_to LIKE ?", "%"+strconv.FormatUint(uint64(filter.viewerID), 10)+"%")
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, id uint, update PostUpdate) error {
	cols := update.columns()
	if len(cols) == 0 {
		return models.NewValidationError("Nothing to update")
	}

	res := r.db.WithContext(ctx).Model(&models.BlogPost{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.cache.InvalidatePost(ctx, id)
	return nil
}

// Delete removes the row permanently.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.BlogPost{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.cache.InvalidatePost(ctx, id)
	return nil
}
