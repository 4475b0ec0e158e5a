package domain

// Role is the coarse account role attached to an identity.
type Role string

const (
	RoleTraveller Role = "traveller"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

// Identity is an authenticated caller.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Privileged reports whether the identity may act on any booking.
func (i Identity) Privileged() bool {
	return i.Role == RoleAdmin || i.Role == RoleSystem
}

// IsDriver reports whether the identity carries the driver role.
func (i Identity) IsDriver() bool {
	return i.Role == RoleDriver
}

// SystemIdentity is the actor used by time-driven transitions such as expiry.
var SystemIdentity = Identity{ID: "system", Role: RoleSystem}

// ParseRole maps a claim value to a Role, defaulting to traveller.
func ParseRole(v string) Role {
	switch Role(v) {
	case RoleDriver, RoleAdmin:
		return Role(v)
	default:
		return RoleTraveller
	}
}
