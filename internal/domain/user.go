package domain

// Role is the "papel" flag distinguishing ordinary users from administrators.
type Role int

const (
	RoleUser  Role = 0
	RoleAdmin Role = 1
)

// IsAdmin reports whether the role grants administrator access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User is an account able to open tickets.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
}
