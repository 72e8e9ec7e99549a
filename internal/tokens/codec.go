package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/models"
)

type AccessClaims struct {
	Role models.Role `json:"role"`
	// pointer so a token missing the claim is distinguishable from an
	// inactive identity
	IsActive *bool `json:"is_active"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func (c *AccessClaims) Active() bool {
	return c.IsActive != nil && *c.IsActive
}

// Codec signs and verifies the self-contained access credential. Validity
// is a function of signature and expiry alone, no storage lookup involved.
type Codec struct {
	Secret    []byte
	Algorithm string
	AccessTTL time.Duration

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Codec) method() string {
	if c.Algorithm == "" {
		return jwt.SigningMethodHS256.Alg()
	}
	return c.Algorithm
}

func (c *Codec) Encode(userID uuid.UUID, role models.Role, isActive bool) (string, time.Time, error) {
	exp := c.now().Add(c.AccessTTL)
	claims := AccessClaims{
		Role:     role,
		IsActive: &isActive,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	method := jwt.GetSigningMethod(c.method())
	if method == nil {
		return "", time.Time{}, errors.New("unknown signing method " + c.method())
	}

	token, err := jwt.NewWithClaims(method, claims).SignedString(c.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Decode verifies signature and expiry. An expired-but-genuine token comes
// back as apperr.ErrCredentialExpired, everything else as
// apperr.ErrInvalidCredential; the two are never conflated.
func (c *Codec) Decode(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method() {
			return nil, errors.New("unexpected sign method")
		}
		return c.Secret, nil
	},
		jwt.WithValidMethods([]string{c.method()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.ErrCredentialExpired
		}
		return nil, apperr.ErrInvalidCredential
	}
	if !tkn.Valid || claims.Subject == "" || claims.Role == "" || claims.IsActive == nil {
		return nil, apperr.ErrInvalidCredential
	}
	return &claims, nil
}
