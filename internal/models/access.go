package models

import "time"

// User is a locally known identity of the auth provider. A user without a
// role holds no permissions.
type User struct {
	ID        string    `gorm:"size:191;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;index" json:"email"`
	RoleID    *uint64   `gorm:"index" json:"role_id"`
	Role      *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role groups permissions.
type Role struct {
	ID          uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Slug        string       `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `gorm:"-" json:"permissions,omitempty"`
}

// Permission is a named capability such as "forms.write".
type Permission struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug        string    `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RolePermission joins roles to permissions.
type RolePermission struct {
	RoleID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	PermissionID uint64 `gorm:"primaryKey;autoIncrement:false;index"`
}

// TableName overrides the table name for RolePermission
func (RolePermission) TableName() string {
	return "role_permissions"
}
