package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloo-solutions/docadmin/internal/config"
	"github.com/cloo-solutions/docadmin/internal/database"
	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/repository"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create and list the admin users allowed to manage documents",
	}

	cmd.AddCommand(AdminCreateCmd())
	cmd.AddCommand(AdminListCmd())

	return cmd
}

func AdminCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new admin user",
		Args:  cobra.ExactArgs(1),
		RunE:  runAdminCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	admin, err := newAuthService(pool).CreateAdmin(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"id":         admin.ID,
			"email":      admin.Email,
			"created_at": admin.CreatedAt,
		})
	}
	fmt.Printf("Admin created: %s (%s)\n", admin.Email, admin.ID)
	return nil
}

func AdminListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all admin users",
		RunE:  runAdminList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runAdminList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	admins, err := newAuthService(pool).ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(admins))
		for i, a := range admins {
			data[i] = map[string]interface{}{
				"id":           a.ID,
				"email":        a.Email,
				"created_at":   a.CreatedAt,
				"last_sign_in": a.LastSignIn,
			}
		}
		return printJSON(map[string]interface{}{"items": data})
	}

	if len(admins) == 0 {
		fmt.Println("No admin users found")
		return nil
	}
	fmt.Println("Admin users:")
	for _, a := range admins {
		lastSeen := "never"
		if a.LastSignIn != nil {
			lastSeen = a.LastSignIn.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %s: %s (created: %s, last sign-in: %s)\n", a.ID, a.Email, a.CreatedAt.Format("2006-01-02 15:04:05"), lastSeen)
	}
	return nil
}

// resolveAdminID accepts an admin id or email.
func resolveAdminID(ctx context.Context, adminRepo *repository.AdminUserRepository, ref string) (string, error) {
	var (
		admin *domain.AdminUser
		err   error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		admin, err = adminRepo.GetByID(ctx, ref)
	} else {
		admin, err = adminRepo.GetByEmail(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, domain.ErrAdminUserNotFound) {
			return "", fmt.Errorf("admin user not found: %s", ref)
		}
		return "", err
	}
	return admin.ID, nil
}

func newAuthService(pool *pgxpool.Pool) *service.AuthService {
	return service.NewAuthService(
		repository.NewAdminUserRepository(pool),
		repository.NewAPIKeyRepository(pool),
		&service.DefaultUUIDGenerator{},
	)
}

func printJSON(v interface{}) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openPool(ctx, cfg)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
}
