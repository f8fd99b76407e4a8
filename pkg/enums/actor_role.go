package enums

// ActorRole is the role claim carried by the external identity provider.
type ActorRole string

const (
	ActorRoleUser  ActorRole = "user"
	ActorRoleAdmin ActorRole = "admin"
)

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the role is one the service understands.
func (a ActorRole) IsValid() bool {
	switch a {
	case ActorRoleUser, ActorRoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role grants administrative access.
func (a ActorRole) IsAdmin() bool {
	return a == ActorRoleAdmin
}
