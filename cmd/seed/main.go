// Package main seeds reference data: branding themes, commission bands
// and the initial admin user. Safe to run repeatedly; every insert is an
// upsert on the natural key.
package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	appctx "club19/internal/core/context"
	"club19/internal/core/types"
	"club19/internal/domain/identity"
	"club19/internal/domain/theme"
	"club19/internal/infrastructure/storage/postgres"
	"club19/pkg/logger"
)

type band struct {
	min     string
	max     string // empty means open-ended
	percent string
}

// Bands for the commissionable margin, percentages of that margin.
var saleBands = []band{
	{min: "0", max: "1000", percent: "20"},
	{min: "1000", max: "5000", percent: "25"},
	{min: "5000", max: "", percent: "30"},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := seedThemes(ctx, pool); err != nil {
		log.Fatalw("failed to seed branding themes", "error", err)
	}
	log.Info("branding themes seeded")

	if err := seedCommissionBands(ctx, pool); err != nil {
		log.Fatalw("failed to seed commission bands", "error", err)
	}
	log.Info("commission bands seeded")

	if err := seedAdminUser(ctx, pool); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}
	log.Info("admin user seeded")
}

func seedThemes(ctx context.Context, pool *postgres.Pool) error {
	for _, m := range theme.DefaultMappings() {
		_, err := pool.Exec(ctx, `
			INSERT INTO branding_themes (theme_key, display_name, account_code, expected_vat_rate)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (theme_key) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				account_code = EXCLUDED.account_code,
				expected_vat_rate = EXCLUDED.expected_vat_rate
		`, m.ThemeKey, m.DisplayName, m.AccountCode, m.ExpectedVatRate)
		if err != nil {
			return fmt.Errorf("upsert theme %s: %w", m.ThemeKey, err)
		}
	}
	return nil
}

func seedCommissionBands(ctx context.Context, pool *postgres.Pool) error {
	for _, b := range saleBands {
		var max *types.Money
		if b.max != "" {
			v := types.MustMoney(b.max)
			max = &v
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO commission_bands (id, band_type, min_threshold, max_threshold, commission_percent, created_at, updated_at, version)
			VALUES (gen_random_uuid(), 'sale', $1, $2, $3, now(), now(), 1)
			ON CONFLICT (band_type, min_threshold) DO UPDATE SET
				max_threshold = EXCLUDED.max_threshold,
				commission_percent = EXCLUDED.commission_percent,
				updated_at = now()
		`, types.MustMoney(b.min), max, types.MustMoney(b.percent))
		if err != nil {
			return fmt.Errorf("upsert band %s: %w", b.min, err)
		}
	}
	return nil
}

func seedAdminUser(ctx context.Context, pool *postgres.Pool) error {
	email := getEnv("ADMIN_EMAIL", "admin@club19.local")
	password := mustEnv("ADMIN_PASSWORD")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := identity.NewUser(email, string(hash), appctx.RoleAdmin)
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, role, is_active, failed_login_attempts, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			is_active = true,
			updated_at = EXCLUDED.updated_at
	`, user.ID, user.Email, user.PasswordHash, "Administrator", user.Role,
		user.IsActive, user.FailedLoginAttempts, user.CreatedAt, user.UpdatedAt, user.Version)
	if err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
