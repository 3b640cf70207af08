package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"join-api/domain"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	defaultSessionTTL   = 12 * time.Hour
)

var errTokenRevoked = errors.New("token revoked")

// Session is the authenticated identity attached to a request.
type Session struct {
	State     domain.SessionState `json:"state"`
	UserID    string              `json:"userId,omitempty"`
	Name      string              `json:"name,omitempty"`
	Email     string              `json:"email,omitempty"`
	TokenID   string              `json:"-"`
	ExpiresAt time.Time           `json:"-"`
}

// Initials are shown in the header avatar.
func (s Session) Initials() string {
	return domain.Contact{Name: s.Name}.Initials()
}

// Revoker remembers logged-out token IDs until they expire.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth issues HS256 session tokens and validates them, plus RS256 tokens
// from an external identity provider when a JWKS is configured.
type Auth struct {
	JWKS     *keyfunc.JWKS
	Audience string
	Issuer   string
	Secret   []byte
	TTL      time.Duration
	Revoker  Revoker

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
	now         func() time.Time
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates a new Auth instance. jwks and revoker may be nil.
func NewAuth(secret []byte, jwks *keyfunc.JWKS, issuer, audience string, ttl time.Duration, revoker Revoker) *Auth {
	if len(secret) == 0 {
		panic("api.NewAuth: secret is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	methods := []string{"HS256"}
	if jwks != nil {
		methods = append(methods, "RS256")
	}
	return &Auth{
		JWKS:        jwks,
		Audience:    audience,
		Issuer:      issuer,
		Secret:      secret,
		TTL:         ttl,
		Revoker:     revoker,
		parser:      jwt.NewParser(jwt.WithValidMethods(methods)),
		keyCacheTTL: defaultJWKSCacheTTL,
		now:         time.Now,
	}
}

// Issue signs a token for s.
func (a *Auth) Issue(s Session) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.TTL)
	claims := jwt.MapClaims{
		"sub":   s.UserID,
		"name":  s.Name,
		"guest": s.State == domain.SessionGuest,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	if s.Email != "" {
		claims["email"] = s.Email
	}
	if a.Issuer != "" {
		claims["iss"] = a.Issuer
	}
	if a.Audience != "" {
		claims["aud"] = a.Audience
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Unix(exp.Unix(), 0), nil
}

// Authenticate validates a raw token and returns its session.
func (a *Auth) Authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, errMissingAuthorization
	}
	parsed, err := a.parser.Parse(token, a.keyForToken)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", errBadAuthorization, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("%w: invalid claims", errBadAuthorization)
	}
	if !claims.VerifyExpiresAt(a.now().Unix(), true) {
		return Session{}, fmt.Errorf("%w: token expired", errBadAuthorization)
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return Session{}, fmt.Errorf("%w: invalid audience", errBadAuthorization)
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return Session{}, fmt.Errorf("%w: invalid issuer", errBadAuthorization)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Session{}, fmt.Errorf("%w: missing sub", errBadAuthorization)
	}
	s := Session{State: domain.SessionUser, UserID: sub}
	s.Name, _ = claims["name"].(string)
	s.Email, _ = claims["email"].(string)
	s.TokenID, _ = claims["jti"].(string)
	if guest, _ := claims["guest"].(bool); guest {
		s.State = domain.SessionGuest
	}
	if exp, ok := claims["exp"].(float64); ok {
		s.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if a.Revoker != nil && s.TokenID != "" {
		revoked, err := a.Revoker.Revoked(ctx, s.TokenID)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, fmt.Errorf("%w: %v", errBadAuthorization, errTokenRevoked)
		}
	}
	return s, nil
}

// Revoke blocks the session's token until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, s Session) error {
	if a.Revoker == nil || s.TokenID == "" {
		return nil
	}
	return a.Revoker.Revoke(ctx, s.TokenID, s.ExpiresAt)
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
		return a.Secret, nil
	}
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if a.now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: a.now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
