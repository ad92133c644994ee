// Command admin manages blog accounts and demo data from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"blogapi/internal/cache"
	"blogapi/internal/config"
	"blogapi/internal/database"
	"blogapi/internal/hashing"
	"blogapi/internal/models"
	"blogapi/internal/observability"
	"blogapi/internal/repository"
	"blogapi/internal/seed"
	"blogapi/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cliApp is built once per invocation by the root command's PersistentPreRunE.
type cliApp struct {
	db    *gorm.DB
	rdb   *redis.Client
	users repository.UserRepository
	auth  *service.AuthService
	posts *service.PostService
	seed  *seed.Seeder
}

func newRootCmd() *cobra.Command {
	rt := &cliApp{}

	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Blog administration utilities",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return rt.open(cfg)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.close()
		},
	}

	cmd.AddCommand(
		newCreateUserCmd(rt),
		newSetAdminCmd(rt, "promote", true),
		newSetAdminCmd(rt, "demote", false),
		newListAdminsCmd(rt),
		newSeedCmd(rt),
	)
	return cmd
}

func (rt *cliApp) open(cfg *config.Config) error {
	logger := observability.NewLogger(cfg.Env)

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	hasher, err := hashing.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	// Writes go through the server's cache so a demotion is seen by the next
	// request instead of after UserTTL.
	rdb, err := cache.Connect(cfg.RedisURL, nil, logger)
	if err != nil {
		logger.Warn("Redis unavailable, cached users are not invalidated",
			slog.String("error", err.Error()),
		)
		rdb = nil
	}
	store := cache.New(rdb)

	rt.db = db
	rt.rdb = rdb
	rt.users = repository.NewUserRepository(db, store)
	rt.auth = service.NewAuthService(rt.users, hasher)
	rt.posts = service.NewPostService(repository.NewPostRepository(db, store))
	rt.seed = seed.NewSeeder(rt.users, rt.auth, rt.posts, logger)
	return nil
}

func (rt *cliApp) close() error {
	if rt.rdb != nil {
		_ = rt.rdb.Close()
	}
	if rt.db == nil {
		return nil
	}
	return database.Close(rt.db)
}

func newCreateUserCmd(rt *cliApp) *cobra.Command {
	var (
		password string
		admin    bool
	)
	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := rt.auth.Register(ctx, service.RegisterInput{Username: args[0], Password: password})
			if err != nil {
				return err
			}
			if admin {
				if err := rt.users.SetAdmin(ctx, user.ID, true); err != nil {
					return err
				}
				user.IsAdmin = true
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (ID: %d, admin: %t)\n", user.Username, user.ID, user.IsAdmin)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password for the new account")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSetAdminCmd(rt *cliApp, use string, isAdmin bool) *cobra.Command {
	short := "Grant admin rights to a user"
	if !isAdmin {
		short = "Revoke admin rights from a user"
	}
	return &cobra.Command{
		Use:   use + " <username|id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := rt.findUser(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if user.IsAdmin == isAdmin {
				fmt.Fprintf(out, "User %s (ID: %d) already has admin=%t\n", user.Username, user.ID, isAdmin)
				return nil
			}
			if err := rt.users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
				return err
			}
			fmt.Fprintf(out, "Updated %s (ID: %d): admin=%t\n", user.Username, user.ID, isAdmin)
			return nil
		},
	}
}

func newListAdminsCmd(rt *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "List all admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admins, err := rt.users.ListAdmins(cmd.Context())
			if err != nil {
				return err
			}
			printAdmins(cmd.OutOrStdout(), admins)
			return nil
		},
	}
}

func printAdmins(w io.Writer, admins []models.User) {
	if len(admins) == 0 {
		fmt.Fprintln(w, "No admins found")
		return
	}
	for _, a := range admins {
		fmt.Fprintf(w, "ID: %d | Username: %s\n", a.ID, a.Username)
	}
}

func newSeedCmd(rt *cliApp) *cobra.Command {
	var (
		opts     seed.Options
		fixtures string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo users and posts",
		Long: "Without --fixtures, creates random users and posts. With --fixtures, " +
			"applies a YAML file of users and posts instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res *seed.Result
				err error
			)
			if fixtures != "" {
				fx, loadErr := seed.LoadFixtures(fixtures)
				if loadErr != nil {
					return loadErr
				}
				res, err = rt.seed.Apply(cmd.Context(), fx)
			} else {
				res, err = rt.seed.Random(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users and %d posts\n", len(res.Users), len(res.Posts))
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.NumUsers, "users", 5, "number of random users")
	cmd.Flags().IntVar(&opts.PostsPerUser, "posts", 3, "posts per random user")
	cmd.Flags().StringVar(&opts.Password, "password", "password", "password shared by random users")
	cmd.Flags().Int64Var(&opts.RandSeed, "rand-seed", 0, "random seed, 0 for a random one")
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "YAML fixture file")
	return cmd
}

// findUser accepts a numeric id or a username.
func (rt *cliApp) findUser(ctx context.Context, ref string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		user, err = rt.users.GetByID(ctx, uint(id))
	} else {
		user, err = rt.users.GetByUsername(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user " + strconv.Quote(ref) + " not found")
	}
	return user, nil
}
