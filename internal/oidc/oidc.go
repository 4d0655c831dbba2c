package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/middleware"
)

// firebaseIssuerBase is the issuer prefix of Firebase Auth ID tokens.
const firebaseIssuerBase = "https://securetoken.google.com/"

// FirebaseIssuer returns the token issuer for a Firebase project.
func FirebaseIssuer(projectID string) string {
	return firebaseIssuerBase + strings.TrimSpace(projectID)
}

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier creates a new OIDC verifier for the given issuer and audience.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

// NewFirebaseVerifier verifies Firebase Auth ID tokens: the audience is the
// project id and keys come from Google's published JWKS.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*Verifier, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}
	return NewVerifier(ctx, FirebaseIssuer(projectID), projectID)
}

// Verify verifies the provided raw ID token using the provided context and returns a middleware.Token
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
