package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userColumns = `
    u.id, u.email, u.first_name, u.last_name,
    COALESCE(u.phone, ''), COALESCE(u.address, ''), COALESCE(u.gender, ''), COALESCE(u.level, ''),
    u.role_id, r.name,
    COALESCE(u.department_id::text, ''), COALESCE(u.position_id::text, ''),
    COALESCE(u.manager_id::text, ''), COALESCE(u.team_lead_id::text, ''), COALESCE(u.hr_id::text, ''),
    u.is_active, u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName,
		&u.Phone, &u.Address, &u.Gender, &u.Level,
		&u.RoleID, &u.RoleName,
		&u.DepartmentID, &u.PositionID,
		&u.ManagerID, &u.TeamLeadID, &u.HRID,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	row := s.DB.QueryRow(ctx, "SELECT"+userColumns+" FROM users u JOIN roles r ON u.role_id = r.id WHERE u.id = $1", userID)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+userColumns+`
    FROM users u
    JOIN roles r ON u.role_id = r.id
    ORDER BY u.last_name, u.first_name
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u User, passwordHash string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, first_name, last_name, phone, address, gender, level,
                       role_id, department_id, position_id, manager_id, team_lead_id, hr_id, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,
            NULLIF($10,'')::uuid, NULLIF($11,'')::uuid, NULLIF($12,'')::uuid,
            NULLIF($13,'')::uuid, NULLIF($14,'')::uuid, $15)
    RETURNING id
  `, u.Email, passwordHash, u.FirstName, u.LastName, u.Phone, u.Address, u.Gender, u.Level,
		u.RoleID, u.DepartmentID, u.PositionID, u.ManagerID, u.TeamLeadID, u.HRID, u.IsActive).Scan(&id)
	return id, err
}

func (s *Store) UpdateUser(ctx context.Context, u User) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users
    SET email = $1, first_name = $2, last_name = $3, phone = $4, address = $5, gender = $6, level = $7,
        role_id = $8,
        department_id = NULLIF($9,'')::uuid, position_id = NULLIF($10,'')::uuid,
        manager_id = NULLIF($11,'')::uuid, team_lead_id = NULLIF($12,'')::uuid, hr_id = NULLIF($13,'')::uuid,
        is_active = $14, updated_at = now()
    WHERE id = $15
  `, u.Email, u.FirstName, u.LastName, u.Phone, u.Address, u.Gender, u.Level,
		u.RoleID, u.DepartmentID, u.PositionID, u.ManagerID, u.TeamLeadID, u.HRID, u.IsActive, u.ID)
	return err
}

func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(description, ''), is_system
    FROM roles
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(description, ''), COALESCE(manager_id::text, ''), is_active
    FROM departments
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.ManagerID, &d.IsActive); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (s *Store) CreateDepartment(ctx context.Context, d Department) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, description, manager_id, is_active)
    VALUES ($1,$2,NULLIF($3,'')::uuid,$4)
    RETURNING id
  `, d.Name, d.Description, d.ManagerID, d.IsActive).Scan(&id)
	return id, err
}

func (s *Store) UpdateDepartment(ctx context.Context, d Department) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE departments
    SET name = $1, description = $2, manager_id = NULLIF($3,'')::uuid, is_active = $4
    WHERE id = $5
  `, d.Name, d.Description, d.ManagerID, d.IsActive, d.ID)
	return err
}

func (s *Store) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(description, ''), COALESCE(department_id::text, ''), COALESCE(level, ''), is_active
    FROM positions
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DepartmentID, &p.Level, &p.IsActive); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *Store) CreatePosition(ctx context.Context, p Position) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO positions (name, description, department_id, level, is_active)
    VALUES ($1,$2,NULLIF($3,'')::uuid,$4,$5)
    RETURNING id
  `, p.Name, p.Description, p.DepartmentID, p.Level, p.IsActive).Scan(&id)
	return id, err
}

func (s *Store) IsManagerOf(ctx context.Context, actorID, submitterID string) (bool, error) {
	return s.exists(ctx, `
    SELECT COUNT(1) FROM users
    WHERE id = $1 AND manager_id = $2
  `, submitterID, actorID)
}

func (s *Store) IsTeamLeadOf(ctx context.Context, actorID, submitterID string) (bool, error) {
	return s.exists(ctx, `
    SELECT COUNT(1) FROM users
    WHERE id = $1 AND team_lead_id = $2
  `, submitterID, actorID)
}

func (s *Store) IsDepartmentHeadOf(ctx context.Context, actorID, submitterID string) (bool, error) {
	return s.exists(ctx, `
    SELECT COUNT(1)
    FROM users u
    JOIN departments d ON u.department_id = d.id
    WHERE u.id = $1 AND d.manager_id = $2
  `, submitterID, actorID)
}

func (s *Store) IsAssignedHROf(ctx context.Context, actorID, submitterID string) (bool, error) {
	return s.exists(ctx, `
    SELECT COUNT(1) FROM users
    WHERE id = $1 AND hr_id = $2
  `, submitterID, actorID)
}

func (s *Store) ActiveUserHasRole(ctx context.Context, userID, roleName string) (bool, error) {
	return s.exists(ctx, `
    SELECT COUNT(1)
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.id = $1 AND u.is_active AND r.name = $2
  `, userID, roleName)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
