package directory

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Level        string    `json:"level,omitempty"`
	RoleID       string    `json:"roleId"`
	RoleName     string    `json:"roleName,omitempty"`
	DepartmentID string    `json:"departmentId,omitempty"`
	PositionID   string    `json:"positionId,omitempty"`
	ManagerID    string    `json:"managerId,omitempty"`
	TeamLeadID   string    `json:"teamLeadId,omitempty"`
	HRID         string    `json:"hrId,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsSystem    bool   `json:"isSystem"`
}

type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ManagerID   string `json:"managerId,omitempty"`
	IsActive    bool   `json:"isActive"`
}

type Position struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
	Level        string `json:"level,omitempty"`
	IsActive     bool   `json:"isActive"`
}
