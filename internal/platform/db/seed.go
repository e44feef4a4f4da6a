package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"lms/internal/domain/auth"
	"lms/internal/domain/workflow"
	"lms/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool)
	if err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}

	if err := ensureAdminUser(ctx, pool, roleIDs[auth.RoleSuperAdmin], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}

	if err := ensureLeaveTypes(ctx, pool); err != nil {
		return err
	}

	return ensureWorkflows(ctx, pool)
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		_, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", roleName).Scan(&id)
		if err == nil {
			roleIDs[roleName] = id
			continue
		}

		err = pool.QueryRow(ctx, "INSERT INTO roles (name) VALUES ($1) RETURNING id", roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	permMap := map[string]string{}
	rows, err := pool.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return err
		}
		permMap[key] = id
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			_, err := pool.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, roleID, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE lower(email) = lower($1)", email).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, first_name, last_name, role_id)
    VALUES (lower($1), $2, 'System', 'Administrator', $3) RETURNING id
  `, email, hash, roleID).Scan(&id)
	return err
}

func ensureLeaveTypes(ctx context.Context, pool *pgxpool.Pool) error {
	types := []struct {
		name             string
		defaultDays      float64
		carryForward     bool
		maxCarryForward  float64
		applicableGender string
		halfDayAllowed   bool
		paid             bool
	}{
		{"Annual Leave", 20, true, 10, "all", true, true},
		{"Sick Leave", 10, false, 0, "all", true, true},
		{"Casual Leave", 7, false, 0, "all", true, true},
		{"Maternity Leave", 90, false, 0, "female", false, true},
		{"Paternity Leave", 10, false, 0, "male", false, true},
		{"Unpaid Leave", 30, false, 0, "all", false, false},
	}
	for _, t := range types {
		_, err := pool.Exec(ctx, `
      INSERT INTO leave_types (name, default_days, is_carry_forward, max_carry_forward_days, applicable_gender, is_half_day_allowed, is_paid_leave)
      VALUES ($1, $2, $3, $4, $5, $6, $7)
      ON CONFLICT (name) DO NOTHING
    `, t.name, t.defaultDays, t.carryForward, t.maxCarryForward, t.applicableGender, t.halfDayAllowed, t.paid)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureWorkflows(ctx context.Context, pool *pgxpool.Pool) error {
	workflows := []struct {
		name     string
		minDays  float64
		maxDays  float64
		maxSteps int
		levels   []workflow.ApproverRole
	}{
		{"Short Leave", 0.5, 2, 2, []workflow.ApproverRole{workflow.RoleManager, workflow.RoleHR}},
		{"Medium Leave", 3, 5, 3, []workflow.ApproverRole{workflow.RoleTeamLead, workflow.RoleManager, workflow.RoleHR}},
		{"Long Leave", 6, 14, 4, []workflow.ApproverRole{workflow.RoleTeamLead, workflow.RoleManager, workflow.RoleDepartmentHead, workflow.RoleHR}},
		{"Extended Leave", 15, 30, 5, []workflow.ApproverRole{workflow.RoleTeamLead, workflow.RoleManager, workflow.RoleDepartmentHead, workflow.RoleHR, workflow.RoleSuperAdmin}},
		{"Long-Term Leave", 31, 90, 6, []workflow.ApproverRole{workflow.RoleTeamLead, workflow.RoleManager, workflow.RoleDepartmentHead, workflow.RoleHR, workflow.RoleHR, workflow.RoleSuperAdmin}},
	}
	for _, w := range workflows {
		_, err := pool.Exec(ctx, `
      INSERT INTO workflow_categories (name, min_days, max_days, max_steps)
      VALUES ($1, $2, $3, $4)
      ON CONFLICT (name) DO NOTHING
    `, w.name, w.minDays, w.maxDays, w.maxSteps)
		if err != nil {
			return err
		}

		levels, err := json.Marshal(w.levels)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
      INSERT INTO approval_workflows (name, min_days, max_days, approval_levels)
      VALUES ($1, $2, $3, $4)
      ON CONFLICT (name) DO NOTHING
    `, w.name, w.minDays, w.maxDays, levels)
		if err != nil {
			return err
		}
	}
	return nil
}
