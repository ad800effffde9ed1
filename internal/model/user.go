package model

// User is the authenticated principal taken from the bearer token.
// Accounts themselves are managed by another service.
type User struct {
	ID        int
	CompanyID int
}
