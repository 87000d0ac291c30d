// Package cli implements civicctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/database"
	"civic-reporter/internal/models"
	"civic-reporter/internal/services"
	"civic-reporter/internal/store"
	"civic-reporter/pkg/auth"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ExitSuccess = 0
	ExitFatal   = 1
)

type AppContext struct {
	Stdout io.Writer
	Stderr io.Writer
	Config func() *config.Config
	Open   func(cfg *config.Config) (*database.Backend, error)
}

type globalFlags struct {
	JSON    bool
	Timeout time.Duration
}

// Run executes the CLI and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(AppContext{Stdout: stdout, Stderr: stderr})
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFatal
	}
	return ExitSuccess
}

// NewRootCommand constructs the command tree.
func NewRootCommand(app AppContext) *cobra.Command {
	app = normalizeAppContext(app)
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "civicctl",
		Short:         "Operate the civic issue reporting backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)

	root.PersistentFlags().BoolVar(&flags.JSON, "json", false, "emit JSON output")
	root.PersistentFlags().DurationVar(&flags.Timeout, "timeout", time.Minute, "overall command timeout")

	root.AddCommand(
		newIndexesCommand(app, flags),
		newReprioritizeCommand(app, flags),
		newEstimateCommand(app, flags),
		newCreateUserCommand(app, flags),
		newMigrateRolesCommand(app, flags),
	)
	return root
}

func normalizeAppContext(app AppContext) AppContext {
	if app.Stdout == nil {
		app.Stdout = io.Discard
	}
	if app.Stderr == nil {
		app.Stderr = io.Discard
	}
	if app.Config == nil {
		app.Config = config.Load
	}
	if app.Open == nil {
		app.Open = database.Open
	}
	return app
}

func newIndexesCommand(app AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), app, flags, func(ctx context.Context, _ *config.Config, backend *database.Backend) error {
				if backend.Mongo == nil {
					return errors.New("indexes require STORE_DRIVER=mongo")
				}
				if err := backend.Mongo.CreateIndexes(ctx); err != nil {
					return err
				}
				return write(app, flags, map[string]interface{}{"indexes": "created"}, "Indexes created")
			})
		},
	}
}

func newReprioritizeCommand(app AppContext, flags *globalFlags) *cobra.Command {
	var (
		limit   int
		issueID string
	)

	cmd := &cobra.Command{
		Use:   "reprioritize",
		Short: "Re-derive priorities, for one issue or every aging issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), app, flags, func(ctx context.Context, cfg *config.Config, backend *database.Backend) error {
				issues := services.NewIssueService(backend.Issues, cfg, nil)

				if issueID != "" {
					id, err := primitive.ObjectIDFromHex(issueID)
					if err != nil {
						return fmt.Errorf("invalid issue id %q", issueID)
					}
					issue, err := issues.Reprioritize(ctx, id)
					if err != nil {
						return err
					}
					return write(app, flags, issue, fmt.Sprintf("%s: %s (%v)", issue.ID.Hex(), issue.Priority, issue.PriorityReasons))
				}

				changed, err := issues.SweepAging(ctx, limit)
				if err != nil {
					return err
				}
				return write(app, flags, map[string]int{"changed": changed}, fmt.Sprintf("%d issues reprioritized", changed))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum issues to examine")
	cmd.Flags().StringVar(&issueID, "id", "", "reprioritize a single issue")
	return cmd
}

func newEstimateCommand(app AppContext, flags *globalFlags) *cobra.Command {
	var category, priority string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print the estimated resolution hours for a category and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := models.Category(category)
			if !c.IsValid() {
				return fmt.Errorf("unknown category %q", category)
			}
			p := models.Priority(priority)
			if !p.IsValid() {
				return fmt.Errorf("unknown priority %q", priority)
			}

			hours := services.EstimateResolutionHours(c, p)
			return write(app, flags, map[string]interface{}{
				"category": c,
				"priority": p,
				"hours":    hours,
			}, fmt.Sprintf("%d", hours))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "issue category")
	cmd.Flags().StringVar(&priority, "priority", string(models.PriorityMedium), "priority level")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newCreateUserCommand(app AppContext, flags *globalFlags) *cobra.Command {
	var input services.NewUser
	var role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user with any role, e.g. a government official",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Role = models.UserRole(role)
			return withBackend(cmd.Context(), app, flags, func(ctx context.Context, cfg *config.Config, backend *database.Backend) error {
				authService := services.NewAuthService(backend.Users, auth.NewJWTManager(cfg.JWTSecret, time.Hour))
				user, err := authService.CreateUser(ctx, input)
				if err != nil {
					return err
				}
				return write(app, flags, user, fmt.Sprintf("created %s %s (%s)", user.Role, user.Email, user.ID.Hex()))
			})
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "display name")
	cmd.Flags().StringVar(&input.Email, "email", "", "login email")
	cmd.Flags().StringVar(&input.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleGovernment), "citizen, government or admin")
	cmd.Flags().StringVar(&input.Department, "department", "", "department of an official")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newMigrateRolesCommand(app AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-roles",
		Short: "Give users with a missing or unknown role the citizen role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), app, flags, func(ctx context.Context, _ *config.Config, backend *database.Backend) error {
				migrator, ok := backend.Users.(store.RoleMigrator)
				if !ok {
					return errors.New("user store does not support role migration")
				}
				changed, err := migrator.NormalizeRoles(ctx, time.Now())
				if err != nil {
					return err
				}
				return write(app, flags, map[string]int64{"migrated": changed}, fmt.Sprintf("%d users migrated", changed))
			})
		},
	}
}

func withBackend(parent context.Context, app AppContext, flags *globalFlags, fn func(ctx context.Context, cfg *config.Config, backend *database.Backend) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, flags.Timeout)
	defer cancel()

	cfg := app.Config()
	backend, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	return fn(ctx, cfg, backend)
}

func write(app AppContext, flags *globalFlags, value interface{}, human string) error {
	if flags.JSON {
		enc := json.NewEncoder(app.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	_, err := fmt.Fprintln(app.Stdout, human)
	return err
}
