// Package signing issues and verifies short-lived download tokens for private
// dataset files.
package signing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer           = "coop-dashboard-api"
	downloadAudience = "dataset-download"
)

// ErrInvalidToken covers malformed, forged and expired tokens alike.
var ErrInvalidToken = errors.New("invalid download token")

// DownloadClaims identifies the dataset a token grants access to.
type DownloadClaims struct {
	DatasetUID string `json:"dataset_uid"`
	jwt.RegisteredClaims
}

// DownloadSigner creates and validates signed download tokens.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDownloadSigner constructs a signer with the provided secret and TTL.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token for datasetUID and the instant it stops being valid.
func (s *DownloadSigner) Issue(datasetUID string) (string, time.Time, error) {
	if datasetUID == "" {
		return "", time.Time{}, fmt.Errorf("dataset uid required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &DownloadClaims{
		DatasetUID: datasetUID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   datasetUID,
			Audience:  jwt.ClaimStrings{downloadAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates token and returns the dataset uid it was issued for.
func (s *DownloadSigner) Parse(token string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrInvalidToken
	}
	claims := &DownloadClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(downloadAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.DatasetUID == "" || claims.DatasetUID != claims.Subject {
		return "", ErrInvalidToken
	}
	return claims.DatasetUID, nil
}
