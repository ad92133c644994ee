package service

import (
	"context"
	"testing"

	"blogapi/internal/models"
	"blogapi/internal/repository"

	"github.com/stretchr/testify/assert"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	setAdminFn       func(context.Context, uint, bool) error
	listAdminsFn     func(context.Context) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, isAdmin bool) error {
	return s.setAdminFn(ctx, id, isAdmin)
}
func (s *userRepoStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.listAdminsFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:        func(_ context.Context, _ uint) (*models.User, error) { return nil, nil },
		getByUsernameFn:  func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updatePasswordFn: func(_ context.Context, _ uint, _ string) error { return nil },
		setAdminFn:       func(_ context.Context, _ uint, _ bool) error { return nil },
		listAdminsFn:     func(_ context.Context) ([]models.User, error) { return nil, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.BlogPost) error
	getByIDFn func(context.Context, uint) (*models.BlogPost, error)
	listFn    func(context.Context, repository.PostFilter) ([]models.BlogPost, error)
	updateFn  func(context.Context, uint, repository.PostUpdate) error
	deleteFn  func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.BlogPost) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.PostFilter) ([]models.BlogPost, error) {
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) Update(ctx context.Context, id uint, update repository.PostUpdate) error {
	return s.updateFn(ctx, id, update)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, _ *models.BlogPost) error { return nil },
		getByIDFn: func(_ context.Context, _ uint) (*models.BlogPost, error) { return nil, nil },
		listFn:    func(_ context.Context, _ repository.PostFilter) ([]models.BlogPost, error) { return nil, nil },
		updateFn:  func(_ context.Context, _ uint, _ repository.PostUpdate) error { return nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
	}
}

// hasherStub treats "hash:<pw>" as the digest of pw.
type hasherStub struct {
	needsRehash bool
}

func (hasherStub) Make(password string) (string, error) { return "hash:" + password, nil }
func (hasherStub) Check(password, hash string) (bool, error) {
	return hash == "hash:"+password, nil
}
func (h hasherStub) NeedsRehash(_ string) (bool, error) { return h.needsRehash, nil }

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	if assert.ErrorAs(t, err, &appErr) {
		assert.Equal(t, code, appErr.Code)
	}
}
