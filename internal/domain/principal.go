package domain

// Principal identifies the user on whose behalf an operation runs.
// Every service entry point receives it explicitly.
type Principal struct {
	UserID int64
}

// NewPrincipal returns a principal for the given user
func NewPrincipal(userID int64) Principal {
	return Principal{UserID: userID}
}
