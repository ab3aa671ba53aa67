package models

// Roles.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

// IsStaff reports whether the user may use the registry and search.
func (u User) IsStaff() bool {
	return RoleAtLeast(u.Role, RoleStaff)
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles never qualify.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 3,
		RoleStaff: 2,
		RoleUser:  1,
	}
	return levels[role] > 0 && levels[role] >= levels[minimum]
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}
