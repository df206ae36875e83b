package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

// Verifier validates operator access tokens issued by the POS backend. The
// engine never mints tokens; it only checks the HMAC signature and standard
// claims before forwarding the raw token onward.
type Verifier struct {
	secret    []byte
	algorithm jwa.SignatureAlgorithm
	issuer    string
	clockSkew time.Duration
	now       func() time.Time
}

// NewVerifier builds a Verifier pinned to the given signing algorithm. An
// empty algorithm defaults to HS256, matching the backend's tokens.
func NewVerifier(secret string, algorithm jwa.SignatureAlgorithm, issuer string) *Verifier {
	if algorithm == "" {
		algorithm = jwa.HS256
	}
	return &Verifier{
		secret:    []byte(secret),
		algorithm: algorithm,
		issuer:    issuer,
		clockSkew: 30 * time.Second,
		now:       time.Now,
	}
}

// Verify validates the token and returns the operator identifier (subject).
func (v *Verifier) Verify(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", unauthorized("missing token", nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if algorithm != v.algorithm {
		return "", unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret))
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithAcceptableSkew(v.clockSkew),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if err := jwt.Validate(parsed, options...); err != nil {
		return "", unauthorized("invalid token", err)
	}
	subject := parsed.Subject()
	if subject == "" {
		return "", unauthorized("invalid token", errors.New("auth: token missing subject"))
	}
	return subject, nil
}

// tokenAlgorithm extracts the signature algorithm from the token header,
// rejecting unsigned and mixed-algorithm tokens.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError(common.CodeUnauthorized, message, http.StatusUnauthorized, err)
}
