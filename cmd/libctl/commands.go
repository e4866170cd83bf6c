// AngelaMos | 2026
// commands.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/bibliotech/internal/auth"
	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/seed"
	"github.com/carterperez-dev/bibliotech/internal/storage"
	"github.com/carterperez-dev/bibliotech/internal/store"
	"github.com/carterperez-dev/bibliotech/migrations"
)

var (
	configPath     string
	privateKeyPath string
	publicKeyPath  string
	seedPassword   string
	managerName    string
	managerEmail   string
	managerPass    string
	pruneRetention time.Duration

	rootCmd = &cobra.Command{
		Use:           "libctl",
		Short:         "Administrative tasks for the Bibliotech API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE:  runMigrate,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generate the ES256 key pair used to sign access tokens",
		RunE:  runKeygen,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load demo accounts and sample documents into an empty database",
		RunE:  runSeed,
	}

	pruneTokensCmd = &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete refresh tokens that expired or were revoked",
		RunE:  runPruneTokens,
	}

	createManagerCmd = &cobra.Command{
		Use:   "create-manager",
		Short: "Create a manager account",
		RunE:  runCreateManager,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"path to config file")

	keygenCmd.Flags().StringVar(&privateKeyPath, "private", "keys/private.pem",
		"private key output path")
	keygenCmd.Flags().StringVar(&publicKeyPath, "public", "keys/public.pem",
		"public key output path")

	seedCmd.Flags().StringVar(&seedPassword, "password", "password",
		"password given to every demo account")

	createManagerCmd.Flags().StringVar(&managerName, "username", "", "manager username")
	createManagerCmd.Flags().StringVar(&managerEmail, "email", "", "manager email")
	createManagerCmd.Flags().StringVar(&managerPass, "password", "", "manager password")
	_ = createManagerCmd.MarkFlagRequired("username") //nolint:errcheck
	_ = createManagerCmd.MarkFlagRequired("password") //nolint:errcheck

	pruneTokensCmd.Flags().DurationVar(&pruneRetention, "retention", 24*time.Hour,
		"keep tokens that stopped being usable less than this long ago")

	rootCmd.AddCommand(
		migrateCmd,
		keygenCmd,
		seedCmd,
		createManagerCmd,
		pruneTokensCmd,
	)
}

func openDatabase(ctx context.Context) (*config.Config, *core.Database, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	_, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	applied, err := core.Migrate(ctx, db.DB, migrations.FS)
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		cmd.Println("schema is up to date")
		return nil
	}

	cmd.Printf("applied %d migration(s): %s\n", len(applied), strings.Join(applied, ", "))
	return nil
}

func runPruneTokens(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	_, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	n, err := auth.PruneExpired(ctx, auth.NewRepository(db.DB), pruneRetention)
	if err != nil {
		return err
	}

	slog.Info("refresh tokens pruned", "deleted", n, "retention", pruneRetention)
	cmd.Printf("deleted %d refresh token(s)\n", n)
	return nil
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	for _, p := range []string{privateKeyPath, publicKeyPath} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
	}

	if err := auth.GenerateKeyPair(privateKeyPath, publicKeyPath); err != nil {
		return err
	}

	cmd.Printf("wrote %s and %s\n", privateKeyPath, publicKeyPath)
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	files, closeFiles, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeFiles() //nolint:errcheck

	summary, err := seed.Run(ctx, store.NewSQL(db), files, seed.Options{
		Password:     seedPassword,
		HashPassword: core.HashPassword,
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}

	cmd.Printf("seeded %d user(s) and %d document(s)\n", summary.Users, summary.Documents)
	for _, title := range summary.Skipped {
		cmd.Printf("skipped %q: no physical copy and no pdf\n", title)
	}
	return nil
}

func runCreateManager(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if len(managerPass) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	_, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	hash, err := core.HashPassword(managerPass)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &membership.User{
		ID:                 uuid.NewString(),
		Username:           strings.TrimSpace(managerName),
		PasswordHash:       hash,
		Role:               membership.RoleManager,
		SubscriptionStatus: membership.StatusNotApplicable,
		SubscriptionType:   membership.PlanNone,
	}
	if email := strings.TrimSpace(managerEmail); email != "" {
		user.Email = &email
	}

	err = store.NewSQL(db).WithinTx(ctx, func(repos store.Repos) error {
		email := ""
		if user.Email != nil {
			email = *user.Email
		}

		taken, err := repos.Users.ExistsByUsernameOrEmail(ctx, user.Username, email)
		if err != nil {
			return err
		}
		if taken {
			return core.DuplicateError("username or email")
		}

		return repos.Users.Create(ctx, user)
	})
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	cmd.Printf("manager %q created (%s)\n", user.Username, user.ID)
	return nil
}
