package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/fhirclient"
	"github.com/healthprep/healthprep/internal/platform/phi"
)

// TokenStore adapts ProviderRepository to fhirclient.Store, encrypting
// access and refresh tokens with PHIEncryptor before they ever reach the
// database — an OAuth2 refresh token is as sensitive as any PHI field.
type TokenStore struct {
	repo      ProviderRepository
	encryptor *phi.PHIEncryptor
}

func NewTokenStore(repo ProviderRepository, encryptor *phi.PHIEncryptor) *TokenStore {
	return &TokenStore{repo: repo, encryptor: encryptor}
}

func (s *TokenStore) GetToken(ctx context.Context, tenantID, providerID uuid.UUID) (fhirclient.Token, error) {
	p, err := s.repo.GetByID(ctx, tenantID, providerID)
	if err != nil {
		return fhirclient.Token{}, err
	}
	if p.AccessTokenEnc == "" {
		return fhirclient.Token{}, corerr.New(corerr.KindAuthRequired, "provider has no stored token")
	}

	access, err := s.encryptor.Decrypt(tenantID, p.AccessTokenEnc)
	if err != nil {
		return fhirclient.Token{}, fmt.Errorf("tenant: decrypt access token: %w", err)
	}
	refresh := ""
	if p.RefreshTokenEnc != "" {
		refresh, err = s.encryptor.Decrypt(tenantID, p.RefreshTokenEnc)
		if err != nil {
			return fhirclient.Token{}, fmt.Errorf("tenant: decrypt refresh token: %w", err)
		}
	}

	tok := fhirclient.Token{AccessToken: access, RefreshToken: refresh, Scope: p.TokenScope}
	if p.TokenExpiresAt != nil {
		tok.ExpiresAt = *p.TokenExpiresAt
	}
	return tok, nil
}

func (s *TokenStore) SaveToken(ctx context.Context, tenantID, providerID uuid.UUID, tok fhirclient.Token) error {
	accessEnc, err := s.encryptor.Encrypt(tenantID, tok.AccessToken)
	if err != nil {
		return fmt.Errorf("tenant: encrypt access token: %w", err)
	}
	refreshEnc := ""
	if tok.RefreshToken != "" {
		refreshEnc, err = s.encryptor.Encrypt(tenantID, tok.RefreshToken)
		if err != nil {
			return fmt.Errorf("tenant: encrypt refresh token: %w", err)
		}
	}
	expiresAt := tok.ExpiresAt
	return s.repo.UpdateTokens(ctx, tenantID, providerID, accessEnc, refreshEnc, tok.Scope, &expiresAt)
}

func (s *TokenStore) ClearToken(ctx context.Context, tenantID, providerID uuid.UUID) error {
	return s.repo.ClearTokens(ctx, tenantID, providerID)
}
