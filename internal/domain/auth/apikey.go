package auth

import (
	"context"
	"slices"
)

// ScopeAdmin grants administrator rights over every order.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string

	UserID   string
	UserName string
	TaxID    string
}

// Actor returns the portal user the key acts for.
func (i APIKeyInfo) Actor() Actor {
	return Actor{
		UserID: i.UserID,
		Name:   i.UserName,
		TaxID:  i.TaxID,
		Admin:  slices.Contains(i.Scopes, ScopeAdmin),
	}
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
