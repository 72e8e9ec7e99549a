package tokens

import (
	"time"

	"github.com/google/uuid"

	"github.com/avdoshkin/smile-crm/internal/models"
)

type Credentials struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshTTL   time.Duration
}

// Issuer mints a fresh access/refresh pair for an identity. It never touches
// storage; persisting the refresh side is the caller's job.
type Issuer struct {
	Codec      *Codec
	RefreshTTL time.Duration
}

func (i *Issuer) Issue(u *models.User) (*Credentials, error) {
	access, exp, err := i.Codec.Encode(u.ID, u.Role, u.IsActive)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		AccessToken:  access,
		AccessExp:    exp,
		RefreshToken: uuid.NewString(),
		RefreshTTL:   i.RefreshTTL,
	}, nil
}
