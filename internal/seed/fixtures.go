package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"blogapi/internal/models"
	"blogapi/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML seed file format:
//
//	users:
//	  - username: alice
//	    password: pw1
//	    admin: true
//	posts:
//	  - author: alice
//	    content: hello
//	    visible_to: [bob]
type Fixtures struct {
	Users []FixtureUser `yaml:"users"`
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

// FixturePost refers to users by username; visible_to is resolved to ids on load.
type FixturePost struct {
	Author    string   `yaml:"author"`
	Content   string   `yaml:"content"`
	VisibleTo []string `yaml:"visible_to"`
}

// DecodeFixtures parses r strictly; unknown keys are an error.
func DecodeFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fx, nil
}

// LoadFixtures reads and parses a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeFixtures(f)
}

// Apply creates the fixture users and posts. Users that already exist are
// reused as they are, so applying the same file twice only adds posts.
func (s *Seeder) Apply(ctx context.Context, fx *Fixtures) (*Result, error) {
	res := &Result{}
	byName := make(map[string]*models.User, len(fx.Users))

	for _, fu := range fx.Users {
		user, err := s.ensureUser(ctx, fu)
		if err != nil {
			return res, err
		}
		byName[user.Username] = user
		res.Users = append(res.Users, *user)
	}

	for i, fp := range fx.Posts {
		author, err := s.lookup(ctx, byName, fp.Author)
		if err != nil {
			return res, fmt.Errorf("post %d: %w", i, err)
		}

		audience := make([]string, 0, len(fp.VisibleTo))
		for _, name := range fp.VisibleTo {
			viewer, err := s.lookup(ctx, byName, name)
			if err != nil {
				return res, fmt.Errorf("post %d: %w", i, err)
			}
			audience = append(audience, strconv.FormatUint(uint64(viewer.ID), 10))
		}

		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			AuthorID:  author.ID,
			Content:   fp.Content,
			VisibleTo: strings.Join(audience, ","),
		})
		if err != nil {
			return res, fmt.Errorf("post %d: %w", i, err)
		}
		res.Posts = append(res.Posts, *post)
	}

	s.logger.InfoContext(ctx, "fixtures applied",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
	)
	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, fu FixtureUser) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, fu.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.auth.Register(ctx, service.RegisterInput{Username: fu.Username, Password: fu.Password})
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", fu.Username, err)
		}
	}
	if fu.Admin && !user.IsAdmin {
		if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, err
		}
		user.IsAdmin = true
	}
	return user, nil
}

func (s *Seeder) lookup(ctx context.Context, known map[string]*models.User, username string) (*models.User, error) {
	if u, ok := known[username]; ok {
		return u, nil
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	known[username] = u
	return u, nil
}
