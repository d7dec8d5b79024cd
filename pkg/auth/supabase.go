package auth

import (
	"context"

	"github.com/supabase-community/supabase-go"

	"relmap/application/ports"
	apperrors "relmap/pkg/errors"
)

// SupabaseIdentity resolves access tokens with the Supabase auth service
type SupabaseIdentity struct {
	client *supabase.Client
}

// NewSupabaseIdentity creates an identity provider backed by Supabase auth
func NewSupabaseIdentity(client *supabase.Client) *SupabaseIdentity {
	return &SupabaseIdentity{client: client}
}

// Authenticate implements ports.IdentityProvider.
// GetUser takes no context; the request is bounded by the client's HTTP timeout.
func (s *SupabaseIdentity) Authenticate(ctx context.Context, token string) (*ports.Principal, error) {
	if token == "" {
		return nil, apperrors.NewAuthRequiredError("")
	}

	user, err := s.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return nil, apperrors.NewAuthRequiredError("invalid token").WithCause(err)
	}

	return &ports.Principal{UserID: user.ID.String(), Email: user.Email}, nil
}
