package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	ProviderPassword = "password"

	minPasswordLen = 8
)

// federatedNamespace derives stable owner IDs from provider subjects
var federatedNamespace = uuid.MustParse("6f1c3e62-4a0b-4f53-9d1e-7c2a8b9e0d41")

// Config holds the provider settings
type Config struct {
	SigningKey       []byte
	SessionTTL       time.Duration
	FederatedSecrets map[string][]byte // provider name -> HS256 assertion secret
	SignInRate       rate.Limit
	SignInBurst      int
	Now              func() time.Time
}

// Session is an issued sign-in
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

type sessionClaims struct {
	Email    string `json:"email,omitempty"`
	Provider string `json:"prv"`
	jwt.RegisteredClaims
}

type assertionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Provider implements password and federated sign-in with signed session tokens
type Provider struct {
	users     UserStore
	signKey   []byte
	ttl       time.Duration
	federated map[string][]byte
	revoked   *cache.Cache
	limiter   *addressLimiter
	now       func() time.Time
}

// NewProvider creates a Provider
func NewProvider(users UserStore, cfg Config) (*Provider, error) {
	if len(cfg.SigningKey) < 16 {
		return nil, fmt.Errorf("session signing key must be at least 16 bytes")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.SignInRate <= 0 {
		cfg.SignInRate = rate.Every(6 * time.Second)
	}
	if cfg.SignInBurst <= 0 {
		cfg.SignInBurst = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Provider{
		users:     users,
		signKey:   cfg.SigningKey,
		ttl:       cfg.SessionTTL,
		federated: cfg.FederatedSecrets,
		revoked:   cache.New(cfg.SessionTTL, 10*time.Minute),
		limiter:   newAddressLimiter(cfg.SignInRate, cfg.SignInBurst),
		now:       cfg.Now,
	}, nil
}

// Register creates a password account and signs it in
func (p *Provider) Register(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	salt, err := newSalt()
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	user := &User{
		ID:        uuid.NewString(),
		Email:     email,
		PwdHash:   hashPassword(password, salt),
		Salt:      salt,
		CreatedAt: p.now().UTC(),
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("Account registered", "owner_id", user.ID)
	return p.issue(user.ID, email, ProviderPassword)
}

// SignIn checks a password, throttled per remote address
func (p *Provider) SignIn(ctx context.Context, email, password, remoteAddr string) (*Session, error) {
	if !p.limiter.Allow(remoteAddr) {
		return nil, ErrRateLimited
	}

	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Account lookup failed", "error", err)
		}
		return nil, ErrInvalidCredentials
	}
	if !verifyPassword(password, user.Salt, user.PwdHash) {
		return nil, ErrInvalidCredentials
	}
	return p.issue(user.ID, user.Email, ProviderPassword)
}

// SignInFederated accepts an HS256 assertion issued by a configured external
// provider. The owner ID is derived from provider and subject, so it is stable
// across sign-ins.
func (p *Provider) SignInFederated(_ context.Context, provider, assertion string) (*Session, error) {
	secret, ok := p.federated[provider]
	if !ok || provider == ProviderPassword {
		return nil, ErrUnknownProvider
	}

	var claims assertionClaims
	_, err := jwt.ParseWithClaims(assertion, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(provider),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}

	ownerID := uuid.NewSHA1(federatedNamespace, []byte(provider+":"+claims.Subject)).String()
	return p.issue(ownerID, normalizeEmail(claims.Email), provider)
}

// SignOut revokes the session until the token would have expired anyway
func (p *Provider) SignOut(ctx context.Context, token string) (Identity, error) {
	id, claims, err := p.parse(token)
	if err != nil {
		return Identity{}, err
	}
	ttl := claims.ExpiresAt.Time.Sub(p.now())
	if ttl > 0 {
		p.revoked.Set(id.SessionID, struct{}{}, ttl)
	}
	return id, nil
}

// Authenticate resolves a session token to its identity
func (p *Provider) Authenticate(_ context.Context, token string) (Identity, error) {
	id, _, err := p.parse(token)
	return id, err
}

func (p *Provider) parse(token string) (Identity, *sessionClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return p.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Identity{}, nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if _, revoked := p.revoked.Get(claims.ID); revoked {
		return Identity{}, nil, fmt.Errorf("%w: signed out", ErrInvalidToken)
	}

	return Identity{
		OwnerID:   claims.Subject,
		SessionID: claims.ID,
		Email:     claims.Email,
		Provider:  claims.Provider,
	}, &claims, nil
}

func (p *Provider) issue(ownerID, email, provider string) (*Session, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	sessionID := uuid.NewString()

	claims := sessionClaims{
		Email:    email,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signKey)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}

	return &Session{
		Token:     signed,
		ExpiresAt: exp,
		Identity: Identity{
			OwnerID:   ownerID,
			SessionID: sessionID,
			Email:     email,
			Provider:  provider,
		},
	}, nil
}
