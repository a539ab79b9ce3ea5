package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config controls credential issuing.
type Config struct {
	// SecretKey signs access and refresh tokens. Generated at first start if
	// empty.
	SecretKey string `conf:"secret_key" yaml:"secret_key" json:"secret_key"`

	AccessTTL  time.Duration `conf:"access_ttl" yaml:"access_ttl" json:"access_ttl"`
	RefreshTTL time.Duration `conf:"refresh_ttl" yaml:"refresh_ttl" json:"refresh_ttl"`
}

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// GenerateSecretKey generates a random signing key.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// TokenIssuer mints and verifies the bearer credentials LocalStore hands out.
// Access tokens are short-lived; refresh tokens carry a distinct use claim so
// the two can never be swapped.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer builds an issuer from config, filling in TTL defaults.
func NewTokenIssuer(cfg Config) (*TokenIssuer, error) {
	secret := cfg.SecretKey
	if secret == "" {
		generated, err := GenerateSecretKey()
		if err != nil {
			return nil, err
		}

		secret = generated
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}

	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Issue mints an access/refresh pair for the account.
func (t *TokenIssuer) Issue(acct Account) (access, refresh string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(t.accessTTL)

	access, err = t.sign(acct.ID, tokenUseAccess, now, expiresAt)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refresh, err = t.sign(acct.ID, tokenUseRefresh, now, now.Add(t.refreshTTL))
	if err != nil {
		return "", "", time.Time{}, err
	}

	return access, refresh, expiresAt, nil
}

func (t *TokenIssuer) sign(accountID, use string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"use": use,
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccess validates an access token and returns the account id.
func (t *TokenIssuer) VerifyAccess(tokenString string) (string, error) {
	return t.verify(tokenString, tokenUseAccess)
}

// VerifyRefresh validates a refresh token and returns the account id.
func (t *TokenIssuer) VerifyRefresh(tokenString string) (string, error) {
	return t.verify(tokenString, tokenUseRefresh)
}

func (t *TokenIssuer) verify(tokenString, wantUse string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method: %v", ErrSessionExpired, token.Header["alg"])
		}

		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrSessionExpired)
	}

	if use, _ := claims["use"].(string); use != wantUse {
		return "", fmt.Errorf("%w: wrong token use", ErrSessionExpired)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrSessionExpired)
	}

	return sub, nil
}
