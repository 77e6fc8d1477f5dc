package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

// MinSecretLength is the shortest HMAC secret accepted by the signer.
const MinSecretLength = 32

var (
	// ErrTokenMalformed indicates a bad signature, structure, algorithm or claim set.
	ErrTokenMalformed = errors.New("jwt: malformed token")
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrSecretTooShort indicates the configured HMAC secret is unusable.
	ErrSecretTooShort = fmt.Errorf("jwt: secret must be at least %d bytes", MinSecretLength)
)

// TokenType distinguishes access credentials from refresh credentials.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the claim set carried by every issued token.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued to.
func (c *Claims) UserID() string {
	return c.Subject
}

// Expiry returns the expiration instant or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// SignerConfig configures the HS256 signer.
type SignerConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Signer issues and verifies HS256 tokens using one process-wide secret.
// It holds no mutable state besides the clock and is safe for concurrent use.
type Signer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSigner validates the configuration and constructs a Signer.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("jwt: token ttl must be positive")
	}

	return &Signer{
		secret:     []byte(cfg.Secret),
		issuer:     issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the signer clock, primarily for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// AccessTTL reports the configured access-token lifetime.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (s *Signer) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived access token for userID.
func (s *Signer) IssueAccessToken(userID string) (string, *Claims, error) {
	return s.issue(userID, TokenTypeAccess, s.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for userID.
func (s *Signer) IssueRefreshToken(userID string) (string, *Claims, error) {
	return s.issue(userID, TokenTypeRefresh, s.refreshTTL)
}

// IssuePair signs a fresh access and refresh token for userID.
func (s *Signer) IssuePair(userID string) (domain.TokenPair, error) {
	access, accessClaims, err := s.IssueAccessToken(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshClaims, err := s.IssueRefreshToken(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.Expiry(),
		RefreshExpiresAt: refreshClaims.Expiry(),
	}, nil
}

func (s *Signer) issue(userID string, typ TokenType, ttl time.Duration) (string, *Claims, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, fmt.Errorf("jwt: user id is required")
	}

	now := s.now().UTC()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, claims, nil
}

// Verify validates signature, structure and expiry of an access token.
func (s *Signer) Verify(token string) (*Claims, error) {
	return s.parse(token,
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
}

// VerifyIgnoringExpiry performs every check of Verify except the expiry check.
// Refresh is the only caller: the access token may legitimately be stale by then.
func (s *Signer) VerifyIgnoringExpiry(token string) (*Claims, error) {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != s.issuer || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *Signer) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Type != TokenTypeAccess {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
