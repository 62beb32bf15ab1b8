package models

// Role is the account-level privilege of a user. Exactly one owner account
// exists in normal operation; the owner join code enforces that at signup.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleUser
}

// IsAdmin reports whether the role carries admin privileges.
// The owner role implies admin.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User represents an account in the system.
type User struct {
	BaseModel
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // never exposed
	Role         Role   `gorm:"type:varchar(10);not null;default:'user'" json:"role"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// UserBasicInfo holds minimal public information about a user.
// Used for friend lists, request listings and the user directory.
type UserBasicInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Actor identifies the caller of an operation as established by the
// session collaborator. The zero value is the anonymous actor.
type Actor struct {
	ID       uint
	Username string
	Role     Role
}

// Anonymous reports whether the actor is unauthenticated.
func (a Actor) Anonymous() bool {
	return a.ID == 0
}
