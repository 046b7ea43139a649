package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantProvisioner crea el workspace y proyecto por defecto de un usuario nuevo.
type TenantProvisioner interface {
	ProvisionDefaultTenant(ctx context.Context, userID, suggestedName string) error
}

type PgTenantRepository struct {
	pool *pgxpool.Pool
}

func NewPgTenantRepository(pool *pgxpool.Pool) *PgTenantRepository {
	return &PgTenantRepository{pool: pool}
}

func (r *PgTenantRepository) ProvisionDefaultTenant(ctx context.Context, userID, suggestedName string) error {
	name := strings.TrimSpace(suggestedName)
	if name == "" {
		name = "My"
	}
	now := time.Now().UTC()
	workspaceID := uuid.NewString()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertWorkspace = `
			INSERT INTO workspaces (id, owner_id, name, created_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, insertWorkspace, workspaceID, userID, name+"'s Workspace", now); err != nil {
			return err
		}
		const insertProject = `
			INSERT INTO projects (id, workspace_id, name, created_at)
			VALUES ($1, $2, $3, $4)
		`
		_, err := tx.Exec(ctx, insertProject, uuid.NewString(), workspaceID, "Default Project", now)
		return err
	})
}
