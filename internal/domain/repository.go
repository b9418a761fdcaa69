// Package domain provides types shared by the business packages.
package domain

// Page holds pagination parameters for list operations.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// Normalize applies default and maximum limits.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
