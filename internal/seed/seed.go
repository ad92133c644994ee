// Package seed fills a database with demo users and posts, either random
// (gofakeit) or from a YAML fixture file. It is meant for development and tests.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"blogapi/internal/models"
	"blogapi/internal/repository"
	"blogapi/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options controls random seeding.
type Options struct {
	NumUsers     int
	PostsPerUser int
	// Password is shared by every generated account so they can log in.
	Password string
	// RandSeed makes output reproducible; 0 picks a random seed.
	RandSeed int64
}

// Result lists what a seeding run created.
type Result struct {
	Users []models.User
	Posts []models.BlogPost
}

// Seeder creates users and posts through the same services the HTTP handlers use.
type Seeder struct {
	users  repository.UserRepository
	auth   *service.AuthService
	posts  *service.PostService
	logger *slog.Logger
}

func NewSeeder(users repository.UserRepository, auth *service.AuthService, posts *service.PostService, logger *slog.Logger) *Seeder {
	return &Seeder{users: users, auth: auth, posts: posts, logger: logger}
}

// Random creates opts.NumUsers users, each with opts.PostsPerUser posts whose
// visible_to names a random subset of the other seeded users.
func (s *Seeder) Random(ctx context.Context, opts Options) (*Result, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("seed: NumUsers must be positive, got %d", opts.NumUsers)
	}
	if opts.Password == "" {
		opts.Password = "password"
	}
	faker := gofakeit.New(opts.RandSeed)

	res := &Result{}
	for i := 0; i < opts.NumUsers; i++ {
		// The suffix keeps generated names unique within a run.
		username := fmt.Sprintf("%s_%d", strings.ToLower(faker.Username()), faker.Number(1000, 9999))
		user, err := s.auth.Register(ctx, service.RegisterInput{Username: username, Password: opts.Password})
		if err != nil {
			return res, fmt.Errorf("seed user %q: %w", username, err)
		}
		res.Users = append(res.Users, *user)
	}

	for _, author := range res.Users {
		for j := 0; j < opts.PostsPerUser; j++ {
			post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
				AuthorID:  author.ID,
				Content:   faker.Paragraph(1, 3, 12, "\n"),
				VisibleTo: randomAudience(faker, res.Users),
			})
			if err != nil {
				return res, fmt.Errorf("seed post for %q: %w", author.Username, err)
			}
			res.Posts = append(res.Posts, *post)
		}
	}

	s.logger.InfoContext(ctx, "random seed complete",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
	)
	return res, nil
}

func randomAudience(faker *gofakeit.Faker, users []models.User) string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if faker.Bool() {
			ids = append(ids, strconv.FormatUint(uint64(u.ID), 10))
		}
	}
	return strings.Join(ids, ",")
}
