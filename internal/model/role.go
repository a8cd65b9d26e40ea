package model

// UserRole is ordered: administrator > manager > viewer.
type UserRole string

const (
	RoleAdministrator UserRole = "administrator"
	RoleManager       UserRole = "manager"
	RoleViewer        UserRole = "viewer"
)

func (r UserRole) rank() int {
	switch r {
	case RoleAdministrator:
		return 3
	case RoleManager:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

func (r UserRole) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r grants everything min grants.
func (r UserRole) AtLeast(min UserRole) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}
