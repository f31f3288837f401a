package fhirclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
)

// Token is the OAuth2 state the manager tracks per provider: access token,
// refresh token, expiry instant, and granted scope set (spec §4.3).
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// expired reports whether the token is unusable as-is (spec §4.3: "a
// request is made only when the access token is non-null AND expiry is
// in the future").
func (t Token) expired() bool {
	return t.AccessToken == "" || !time.Now().Before(t.ExpiresAt)
}

// Store persists and retrieves a provider's OAuth2 token state. Implemented
// by internal/domain/tenant against the provider table's access_token_enc/
// refresh_token_enc columns (PHI-adjacent, so the store is expected to
// encrypt at rest via internal/platform/phi before writing).
type Store interface {
	GetToken(ctx context.Context, tenantID, providerID uuid.UUID) (Token, error)
	SaveToken(ctx context.Context, tenantID, providerID uuid.UUID, tok Token) error
	// ClearToken disables the provider (spec §4.3 "reauth_required ...
	// disable the tenant/provider until re-consent") by wiping stored
	// token state, forcing the next request down the auth_required path.
	ClearToken(ctx context.Context, tenantID, providerID uuid.UUID) error
}

// TokenManager hands out valid access tokens, refreshing as needed. Refresh
// for a given (tenant, provider) pair is a critical section guarded by a
// keyed mutex, preventing a thundering herd of concurrent refreshes against
// the same provider — generalized from the teacher's JWKSCache locking
// pattern (internal/platform/auth/middleware.go), which serializes JWKS
// refetches the same way, keyed by JWKS URL instead of (tenant, provider).
type TokenManager struct {
	store      Store
	tokenURL   string
	clientID   string
	clientSecret string
	httpClient *http.Client

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewTokenManager creates a TokenManager. tokenURL/clientID/clientSecret
// come from the tenant's Epic app registration (SMART discovery + config).
func NewTokenManager(store Store, tokenURL, clientID, clientSecret string) *TokenManager {
	return &TokenManager{
		store:        store,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		locks:        make(map[string]*sync.Mutex),
	}
}

func (m *TokenManager) lockFor(tenantID, providerID uuid.UUID) *sync.Mutex {
	key := tenantID.String() + "|" + providerID.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// AccessToken returns a valid access token for (tenantID, providerID),
// refreshing it first if it has expired. Returns a corerr-tagged
// auth_required error if there is no token and no refresh path, or
// reauth_required if a refresh attempt fails.
func (m *TokenManager) AccessToken(ctx context.Context, tenantID, providerID uuid.UUID) (string, error) {
	lock := m.lockFor(tenantID, providerID)
	lock.Lock()
	defer lock.Unlock()

	tok, err := m.store.GetToken(ctx, tenantID, providerID)
	if err != nil {
		return "", fmt.Errorf("fhirclient: load token: %w", err)
	}

	if !tok.expired() {
		return tok.AccessToken, nil
	}

	if tok.RefreshToken == "" {
		return "", corerr.New(corerr.KindAuthRequired, "no refresh token on file for provider")
	}

	refreshed, err := m.refresh(ctx, tok.RefreshToken)
	if err != nil {
		if clearErr := m.store.ClearToken(ctx, tenantID, providerID); clearErr != nil {
			return "", fmt.Errorf("fhirclient: refresh failed (%v) and clear failed: %w", err, clearErr)
		}
		return "", corerr.Wrap(corerr.KindReauthRequired, "refresh failed, provider disabled pending re-consent", err)
	}

	// Token storage is updated atomically before the next request, per
	// spec §4.3: the mutex held for the whole function body guarantees
	// no concurrent reader observes a torn write.
	if err := m.store.SaveToken(ctx, tenantID, providerID, refreshed); err != nil {
		return "", fmt.Errorf("fhirclient: save refreshed token: %w", err)
	}

	return refreshed.AccessToken, nil
}

// RefreshAfterUnauthorized performs the single refresh-then-retry the
// client is allowed on a 401 during a write operation (spec §4.3): "on
// second 401 it surfaces reauth_required."
func (m *TokenManager) RefreshAfterUnauthorized(ctx context.Context, tenantID, providerID uuid.UUID) (string, error) {
	lock := m.lockFor(tenantID, providerID)
	lock.Lock()
	defer lock.Unlock()

	tok, err := m.store.GetToken(ctx, tenantID, providerID)
	if err != nil {
		return "", fmt.Errorf("fhirclient: load token: %w", err)
	}
	if tok.RefreshToken == "" {
		return "", corerr.New(corerr.KindReauthRequired, "no refresh token available after 401")
	}

	refreshed, err := m.refresh(ctx, tok.RefreshToken)
	if err != nil {
		_ = m.store.ClearToken(ctx, tenantID, providerID)
		return "", corerr.Wrap(corerr.KindReauthRequired, "refresh after 401 failed", err)
	}

	if err := m.store.SaveToken(ctx, tenantID, providerID, refreshed); err != nil {
		return "", fmt.Errorf("fhirclient: save refreshed token: %w", err)
	}
	return refreshed.AccessToken, nil
}

// tokenResponse is the standard OAuth2 token-endpoint JSON body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// refresh exchanges a refresh token for a new access token via a standard
// OAuth2 refresh_token grant, matching the teacher's manual net/http +
// encoding/json style of calling external HTTP services elsewhere in the
// corpus (no golang.org/x/oauth2 import appears anywhere in the examples).
func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", m.clientID)
	if m.clientSecret != "" {
		form.Set("client_secret", m.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Token{}, corerr.Wrap(corerr.KindTransient, "refresh token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("refresh response missing access_token")
	}

	newRefresh := tr.RefreshToken
	if newRefresh == "" {
		// Some issuers omit refresh_token when it is unchanged.
		newRefresh = refreshToken
	}

	return Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		Scope:        tr.Scope,
	}, nil
}

// ScopeChanged reports whether newScope differs from the previously
// recorded scope, triggering the full-session-clear behavior spec §4.3
// requires on scope-change detection.
func ScopeChanged(previous, current string) bool {
	return normalizeScope(previous) != normalizeScope(current)
}

func normalizeScope(scope string) string {
	fields := strings.Fields(scope)
	// Scope order is not semantically meaningful; compare as a set by
	// sorting, matching how token endpoints are free to reorder scopes
	// on reissue.
	for i := 0; i < len(fields); i++ {
		for j := i + 1; j < len(fields); j++ {
			if fields[j] < fields[i] {
				fields[i], fields[j] = fields[j], fields[i]
			}
		}
	}
	return strconv.Itoa(len(fields)) + ":" + strings.Join(fields, " ")
}
