package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ladybugml/ladybug-bot/internal/config"
)

// appJWTLifetime stays under GitHub's ten minute maximum.
const appJWTLifetime = 9 * time.Minute

// clockSkew backdates iat to tolerate drift between us and GitHub.
const clockSkew = 60 * time.Second

// tokenRefreshMargin renews installation tokens before they expire.
const tokenRefreshMargin = 5 * time.Minute

// AppTokenSource mints installation tokens for a GitHub App.
type AppTokenSource struct {
	appID      string
	key        *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	tokens map[int64]installationToken
}

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAppTokenSource parses the App's private key.
func NewAppTokenSource(cfg *config.AppConfig, baseURL string) (*AppTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub App private key: %w", err)
	}

	return &AppTokenSource{
		appID:      cfg.AppID,
		key:        key,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
		tokens:     make(map[int64]installationToken),
	}, nil
}

// AppJWT signs a short-lived RS256 token identifying the App.
func (a *AppTokenSource) AppJWT() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app token: %w", err)
	}
	return signed, nil
}

// Token returns an installation token, minting a new one when the cached
// token is missing or about to expire.
func (a *AppTokenSource) Token(ctx context.Context, installationID int64) (string, error) {
	if installationID == 0 {
		return "", fmt.Errorf("event has no GitHub App installation")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if cached, ok := a.tokens[installationID]; ok && a.now().Add(tokenRefreshMargin).Before(cached.ExpiresAt) {
		return cached.Token, nil
	}

	appJWT, err := a.AppJWT()
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, installationID)
	var minted installationToken
	if err := doJSON(ctx, a.httpClient, http.MethodPost, endpoint, "Bearer "+appJWT, nil, &minted); err != nil {
		return "", fmt.Errorf("failed to create installation token: %w", err)
	}
	if minted.Token == "" {
		return "", fmt.Errorf("GitHub returned an empty installation token")
	}

	a.tokens[installationID] = minted
	return minted.Token, nil
}

// InstallationForRepo looks up the App installation that covers owner/repo.
// Backend progress updates carry no installation, so comments for them are
// authorized through this lookup.
func (a *AppTokenSource) InstallationForRepo(ctx context.Context, owner, repo string) (int64, error) {
	appJWT, err := a.AppJWT()
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/installation", a.baseURL, owner, repo)
	var installation struct {
		ID int64 `json:"id"`
	}
	if err := doJSON(ctx, a.httpClient, http.MethodGet, endpoint, "Bearer "+appJWT, nil, &installation); err != nil {
		return 0, fmt.Errorf("failed to find installation for %s/%s: %w", owner, repo, err)
	}
	return installation.ID, nil
}
