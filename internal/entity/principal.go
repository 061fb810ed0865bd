package entity

// Principal is the caller identity extracted from a verified bearer token.
type Principal struct {
	UID   string
	Email string
}
