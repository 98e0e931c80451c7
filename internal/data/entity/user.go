package entity

type UserRole string

const (
	RoleClient UserRole = "client"
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
)

// User is the slim shadow of the account service the booking core needs:
// contact phone for denormalization and role for authorization checks.
type User struct {
	Base
	Name     string   `db:"name"`
	Phone    string   `db:"phone"`
	Role     UserRole `db:"role"`
	IsActive bool     `db:"is_active"`
}
