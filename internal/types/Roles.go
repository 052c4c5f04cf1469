package types

// Role names a capability checked at the top of gated operations.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleCompounder Role = "COMPOUNDER"
)

func (r Role) String() string {
	return string(r)
}
