package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/docadmin/internal/repository"
	"github.com/spf13/cobra"
)

func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "Create, list, and revoke API keys",
	}

	cmd.AddCommand(APIKeyCreateCmd())
	cmd.AddCommand(APIKeyListCmd())
	cmd.AddCommand(APIKeyRevokeCmd())

	return cmd
}

func APIKeyCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Create a new API key for an admin user",
		RunE:  runAPIKeyCreate,
	}

	cmd.Flags().StringP("admin", "a", "", "Admin ID or email (required)")
	cmd.Flags().StringP("name", "n", "", "API key name (required)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("admin")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	adminRef, _ := cmd.Flags().GetString("admin")
	name, _ := cmd.Flags().GetString("name")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	adminID, err := resolveAdminID(ctx, repository.NewAdminUserRepository(pool), adminRef)
	if err != nil {
		return err
	}

	plaintext, err := newAuthService(pool).CreateAPIKey(ctx, adminID, name)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"name":     name,
			"admin_id": adminID,
			"token":    plaintext,
		})
	}

	fmt.Printf("API key created for admin %s\n", adminID)
	fmt.Printf("Key Name: %s\n", name)
	fmt.Printf("Token: %s\n", plaintext)
	fmt.Println("\nSave this token now. You won't be able to see it again!")
	return nil
}

func APIKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			adminRef, _ := cmd.Flags().GetString("admin")
			outputFormat, _ := cmd.Flags().GetString("output")
			return runAPIKeyList(adminRef, outputFormat)
		},
	}

	cmd.Flags().StringP("admin", "a", "", "Admin ID or email (required)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("admin")

	return cmd
}

func runAPIKeyList(adminRef, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	adminID, err := resolveAdminID(ctx, repository.NewAdminUserRepository(pool), adminRef)
	if err != nil {
		return err
	}

	keys, err := newAuthService(pool).ListAPIKeys(ctx, adminID)
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(keys))
		for i, key := range keys {
			data[i] = map[string]interface{}{
				"id":         key.ID,
				"name":       key.Name,
				"admin_id":   key.AdminID,
				"created_at": key.CreatedAt,
				"revoked_at": key.RevokedAt,
				"revoked":    key.IsRevoked(),
			}
		}
		return printJSON(map[string]interface{}{"items": data})
	}

	if len(keys) == 0 {
		fmt.Printf("No API keys found for admin %s\n", adminID)
		return nil
	}
	fmt.Printf("API keys for admin %s:\n", adminID)
	for _, key := range keys {
		status := "active"
		if key.IsRevoked() {
			status = "revoked"
		}
		fmt.Printf("  %s: %s (%s, created: %s)\n", key.ID, key.Name, status, key.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func APIKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Long:  "Revoke an API key by its ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runAPIKeyRevoke,
	}

	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	keyID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := newAuthService(pool).RevokeAPIKey(ctx, keyID); err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"id":      keyID,
			"revoked": true,
		})
	}
	fmt.Printf("API key %s revoked successfully\n", keyID)
	return nil
}
