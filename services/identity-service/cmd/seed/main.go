// Seed creates a small demo hierarchy: one root tenant with two children,
// a system administrator, a tenant administrator on the root, and a regular
// user on one child. Intended for local development only.
package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/config"
	"github.com/baechuer/crm-platform/internal/platform/logger"
	"github.com/baechuer/crm-platform/services/identity-service/internal/domain"
	"github.com/baechuer/crm-platform/services/identity-service/internal/security"
	"github.com/baechuer/crm-platform/services/identity-service/internal/store/postgres"
)

func main() {
	config.LoadDotenv()
	logger.Init()
	log := logger.WithService("identity-seed")

	ctx := context.Background()

	dsn, err := config.MustString("IDENTITY_DATABASE_URL")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	tenants := postgres.NewTenantRepo(pool)
	users := postgres.NewUserRepo(pool)
	hasher := security.NewHasher()

	root := &domain.Tenant{Name: "Acme Group"}
	if err := tenants.Create(ctx, root); err != nil {
		log.Fatal().Err(err).Msg("seed root tenant failed")
	}
	east := &domain.Tenant{Name: "Acme East", ParentID: &root.ID}
	west := &domain.Tenant{Name: "Acme West", ParentID: &root.ID}
	for _, t := range []*domain.Tenant{east, west} {
		if err := tenants.Create(ctx, t); err != nil {
			log.Fatal().Err(err).Str("name", t.Name).Msg("seed tenant failed")
		}
	}

	password := config.GetString("SEED_PASSWORD", "changeme123")
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatal().Err(err).Msg("hash seed password failed")
	}

	accounts := []*domain.User{
		{Email: "root@platform.local", PasswordHash: hash, FirstName: "Platform", LastName: "Operator", Role: auth.RoleSystemAdmin, IsActive: true},
		{Email: "admin@acme.local", PasswordHash: hash, FirstName: "Ada", LastName: "Admin", Role: auth.RoleTenantAdmin, TenantID: &root.ID, IsActive: true},
		{Email: "user@acme-east.local", PasswordHash: hash, FirstName: "Eve", LastName: "East", Role: auth.RoleUser, TenantID: &east.ID, IsActive: true},
	}
	for _, u := range accounts {
		if err := users.Create(ctx, u); err != nil {
			log.Fatal().Err(err).Str("email", u.Email).Msg("seed user failed")
		}
	}

	log.Info().
		Str("root_tenant", root.ID).
		Str("east_tenant", east.ID).
		Str("west_tenant", west.ID).
		Msg("seed complete")
}
