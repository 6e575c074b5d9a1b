package oauth

import (
	"fmt"
	"strings"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateClaims binds the OAuth state value to the initiating user and broker.
// Signing the state makes the callback self-validating: no server-side store
// is needed and a forged or expired state fails verification.
type stateClaims struct {
	Nonce  string `json:"nonce"`
	UserID string `json:"uid"`
	Broker string `json:"broker"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies OAuth state strings: HS256-signed JWTs
// whose subject claim is <uuid>_<userId>_<kind>.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer with the given secret and validity window.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue builds a signed state for one authorization round trip.
func (s *StateSigner) Issue(userID string, kind brokers.Kind) (string, error) {
	nonce := uuid.NewString()
	now := s.now()
	claims := stateClaims{
		Nonce:  nonce,
		UserID: userID,
		Broker: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%s_%s_%s", nonce, userID, kind),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", shared.ErrInternal.WithError(err)
	}
	return signed, nil
}

// Verify checks a state from the callback against the expected broker and
// returns the bound user id. Unknown, expired, or foreign states are rejected.
func (s *StateSigner) Verify(state string, wantKind brokers.Kind) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", shared.ErrAuthentication.
			WithDetails("reason", "invalid or expired oauth state").
			WithError(err)
	}

	if claims.Broker != string(wantKind) {
		return "", shared.ErrAuthentication.WithDetails("reason", "oauth state bound to a different broker")
	}
	if claims.UserID == "" || strings.TrimSpace(claims.Nonce) == "" {
		return "", shared.ErrAuthentication.WithDetails("reason", "oauth state missing bindings")
	}

	return claims.UserID, nil
}
