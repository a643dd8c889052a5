// Package github relays repository activity from GitHub to Discord.
package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v50/github"
	"golang.org/x/oauth2"
)

const (
	jwtExpiration        = 10 * time.Minute
	tokenRefreshBuffer   = 5 * time.Minute
	requestTimeout       = 20 * time.Second
	installationCacheTTL = time.Hour
)

// ClientSource returns an API client authorized to read a repository.
type ClientSource interface {
	ClientForRepo(ctx context.Context, owner, repo string) (*github.Client, error)
}

// StaticClient serves every repository with one client, authenticated by a
// personal access token or anonymous.
type StaticClient struct {
	client *github.Client
}

// NewStaticClient creates a client for token; an empty token is anonymous.
func NewStaticClient(ctx context.Context, token string) *StaticClient {
	return &StaticClient{client: newClient(ctx, token, "")}
}

// ClientForRepo returns the shared client.
func (s *StaticClient) ClientForRepo(context.Context, string, string) (*github.Client, error) {
	return s.client, nil
}

// newClient builds a go-github client with the outbound timeout applied.
func newClient(ctx context.Context, token, baseURL string) *github.Client {
	hc := &http.Client{Timeout: requestTimeout}
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		hc.Timeout = requestTimeout
	}

	gh := github.NewClient(hc)
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			gh.BaseURL = u
		}
	}
	return gh
}

// AppClient manages GitHub App authentication.
type AppClient struct {
	privateKey      *rsa.PrivateKey
	logger          *slog.Logger
	tokens          map[int64]*tokenEntry        // Installation token cache
	installations   map[string]installationEntry // owner/repo -> installation
	appID           string
	baseURL         string
	tokensMu        sync.RWMutex
	installationsMu sync.RWMutex
}

type tokenEntry struct {
	expiresAt time.Time
	token     string
}

type installationEntry struct {
	foundAt time.Time
	id      int64
}

// NewAppClient creates a new GitHub App client.
func NewAppClient(appID, privateKeyPEM string, logger *slog.Logger) (*AppClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &AppClient{
		appID:         appID,
		privateKey:    key,
		logger:        logger,
		tokens:        make(map[int64]*tokenEntry),
		installations: make(map[string]installationEntry),
	}, nil
}

// ClientForRepo returns a client authenticated as the app installation that covers owner/repo.
func (c *AppClient) ClientForRepo(ctx context.Context, owner, repo string) (*github.Client, error) {
	installationID, err := c.installationID(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("get installation ID: %w", err)
	}

	token, err := c.installationToken(ctx, installationID)
	if err != nil {
		return nil, fmt.Errorf("get installation token: %w", err)
	}

	return newClient(ctx, token, c.baseURL), nil
}

func (c *AppClient) installationID(ctx context.Context, owner, repo string) (int64, error) {
	key := owner + "/" + repo

	// Check cache.
	c.installationsMu.RLock()
	if entry, ok := c.installations[key]; ok && time.Since(entry.foundAt) < installationCacheTTL {
		c.installationsMu.RUnlock()
		return entry.id, nil
	}
	c.installationsMu.RUnlock()

	inst, _, err := c.jwtClient(ctx).Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		return 0, fmt.Errorf("find installation for %s: %w", key, err)
	}

	// Cache it.
	c.installationsMu.Lock()
	c.installations[key] = installationEntry{id: inst.GetID(), foundAt: time.Now()}
	c.installationsMu.Unlock()

	c.logger.Debug("found installation",
		"repo", key,
		"installation_id", inst.GetID())

	return inst.GetID(), nil
}

func (c *AppClient) installationToken(ctx context.Context, installationID int64) (string, error) {
	// Check cache.
	c.tokensMu.RLock()
	if entry, ok := c.tokens[installationID]; ok && time.Until(entry.expiresAt) > tokenRefreshBuffer {
		c.tokensMu.RUnlock()
		return entry.token, nil
	}
	c.tokensMu.RUnlock()

	// Get new token.
	token, _, err := c.jwtClient(ctx).Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}

	// Cache it.
	c.tokensMu.Lock()
	c.tokens[installationID] = &tokenEntry{
		token:     token.GetToken(),
		expiresAt: token.GetExpiresAt().Time,
	}
	c.tokensMu.Unlock()

	c.logger.Debug("refreshed installation token",
		"installation_id", installationID,
		"expires_at", token.GetExpiresAt())

	return token.GetToken(), nil
}

func (c *AppClient) jwtClient(ctx context.Context) *github.Client {
	return newClient(ctx, c.generateJWT(), c.baseURL)
}

func (c *AppClient) generateJWT() string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		// Backdated to tolerate clock drift.
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiration)),
		Issuer:    c.appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		c.logger.Error("failed to sign JWT", "error", err)
		return ""
	}

	return signed
}
