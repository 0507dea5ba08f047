package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/domain"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenLeeway = time.Hour

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrDevicechanged = errors.New("account is bound to another device")
)

// TokenClaims is the payload of an issued access token.
type TokenClaims struct {
	Account  string `json:"account"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// AuthService mints and verifies RS256 access tokens and enforces the
// one-device-per-account binding. The system account bypasses the binding
// check so internal callers can act with a fixed credential.
type AuthService struct {
	users *repository.UserRepository
	cache *cache.Client

	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	validity   time.Duration

	sysAccount  string
	sysDeviceID string
}

func NewAuthService(db *pgxpool.Pool, c *cache.Client, privatePEM, publicPEM string, validDays int, sysAccount, sysDeviceID string) (*AuthService, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &AuthService{
		users:       repository.NewUserRepository(db),
		cache:       c,
		privateKey:  priv,
		publicKey:   pub,
		validity:    time.Duration(validDays) * 24 * time.Hour,
		sysAccount:  sysAccount,
		sysDeviceID: sysDeviceID,
	}, nil
}

// signToken mints the RS256 token for account bound to deviceID.
func (a *AuthService) signToken(account, deviceID string, now time.Time) (string, error) {
	claims := TokenClaims{
		Account:  account,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.validity)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.privateKey)
}

// parseToken checks the signature and expiry (with one hour of leeway).
func (a *AuthService) parseToken(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithLeeway(tokenLeeway), jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// IssueToken mints a token binding account to deviceID and records the
// binding in the cache for fast verification.
func (a *AuthService) IssueToken(ctx context.Context, account, deviceID string) (string, error) {
	signed, err := a.signToken(account, deviceID, time.Now())
	if err != nil {
		return "", err
	}
	if err := a.cache.SetString(ctx, a.cache.Keys().UserDeviceID(account), deviceID, a.validity); err != nil {
		logger.Error("failed to cache device binding", "account", account, "error", err)
	}
	return signed, nil
}

// VerifyToken parses the token, confirms it belongs to the claimed account,
// and rejects tokens from a device the account is no longer bound to.
func (a *AuthService) VerifyToken(ctx context.Context, account, tokenString string) (*TokenClaims, error) {
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Account != account {
		return nil, ErrInvalidToken
	}

	if a.IsSystem(claims.Account, claims.DeviceID) {
		return claims, nil
	}

	bound, ok, err := a.cache.GetString(ctx, a.cache.Keys().UserDeviceID(account))
	if err != nil {
		logger.Error("device binding cache read failed", "account", account, "error", err)
		ok = false
	}
	if !ok {
		bound, err = a.users.DeviceIDByAccount(ctx, account)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
	}
	if bound != "" && bound != claims.DeviceID {
		return nil, ErrDevicechanged
	}
	return claims, nil
}

// IsSystem reports whether the pair is the fixed internal credential.
func (a *AuthService) IsSystem(account, deviceID string) bool {
	return account == a.sysAccount && deviceID == a.sysDeviceID
}

// ResolveUser loads the profile behind a verified token. The system account
// has no profile row and resolves to a synthetic user.
func (a *AuthService) ResolveUser(ctx context.Context, claims *TokenClaims) (*domain.User, error) {
	if a.IsSystem(claims.Account, claims.DeviceID) {
		return &domain.User{UID: a.sysAccount, Account: a.sysAccount, DeviceID: a.sysDeviceID}, nil
	}
	return a.users.GetByAccount(ctx, claims.Account)
}
