// Package token mints and verifies the signed capabilities that gate stream requests.
//
// A token is self-contained: once issued it is trusted until its exp claim, without
// re-checking purchases per segment. Lifetimes are kept short (see entitlement.Policy)
// to bound what a leaked token can do.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	"video-gate/constant"
	"video-gate/entitlement"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "video-gate"

var (
	ErrInvalidToken  = errors.New("invalid access token")
	ErrVideoMismatch = errors.New("token issued for another video")
)

type Claims struct {
	VideoID         string              `json:"videoId"`
	CourseID        *uint               `json:"courseId,omitempty"`
	IsFree          bool                `json:"isFree,omitempty"`
	Access          constant.AccessType `json:"access"`
	AccessExpiresAt *jwt.NumericDate    `json:"accessExpiresAt,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

type Token struct {
	Value     string
	ExpiresIn int64
	ExpiresAt time.Time
}

type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(d entitlement.Decision) (Token, error) {
	issuedAt := i.now().Truncate(time.Second)
	expiresIn := d.RemainingSeconds()
	expiresAt := issuedAt.Add(time.Duration(expiresIn) * time.Second)

	claims := Claims{
		VideoID:  d.VideoID,
		CourseID: d.CourseID,
		IsFree:   d.Type == constant.AccessTypeFree,
		Access:   d.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   strconv.FormatUint(uint64(d.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if d.AccessExpiresAt != nil {
		claims.AccessExpiresAt = jwt.NewNumericDate(*d.AccessExpiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign access token: %w", err)
	}
	return Token{Value: signed, ExpiresIn: expiresIn, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, expiry and that the token was issued for videoID.
// Every failure wraps ErrInvalidToken.
func (i *Issuer) Verify(raw, videoID string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.VideoID != videoID {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrVideoMismatch)
	}
	return claims, nil
}

// Reason classifies a verification error for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrVideoMismatch):
		return "video_mismatch"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	default:
		return "malformed"
	}
}
