package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/pkg/errors"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// IssueToken signs a session token for the given user with the local
// symmetric key.
func IssueToken(userID uuid.UUID, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrInvalidJWTKey
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	token := jwt.New()
	if err := token.Set(jwt.SubjectKey, userID.String()); err != nil {
		return "", errors.Wrap(err, "failed to set subject claim")
	}
	if err := token.Set(jwt.IssuedAtKey, now.Unix()); err != nil {
		return "", errors.Wrap(err, "failed to set issued-at claim")
	}
	if err := token.Set(jwt.ExpirationKey, now.Add(ttl).Unix()); err != nil {
		return "", errors.Wrap(err, "failed to set expiration claim")
	}

	signed, err := jwt.Sign(token, jwa.HS256, secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}

// UserIDFromToken validates a token and extracts the user id. Identity
// providers differ in which claim carries it, so oid and email are
// accepted besides sub; non-UUID identifiers are hashed into a
// deterministic UUID.
func UserIDFromToken(validator TokenValidator, token string) (uuid.UUID, error) {
	parsed, err := validator.ValidateJWT(token)
	if err != nil {
		return uuid.Nil, err
	}

	claims := *parsed
	var identifier string
	if sub := claims.Subject(); sub != "" {
		identifier = sub
	} else if oid, ok := claims.Get("oid"); ok {
		identifier, _ = oid.(string)
	} else if email, ok := claims.Get("email"); ok {
		identifier, _ = email.(string)
	}
	if identifier == "" {
		return uuid.Nil, errors.New("token missing a user identifier claim")
	}

	userID, err := uuid.Parse(identifier)
	if err != nil {
		userID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(identifier))
	}
	return userID, nil
}
