package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func signToken(t *testing.T, alg jwa.SignatureAlgorithm, mutate func(b *jwt.Builder)) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Subject("op-7").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(builder)
	}
	token, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(alg, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	v := NewVerifier(testSecret, jwa.HS256, "")

	operatorID, err := v.Verify(signToken(t, jwa.HS256, nil))
	require.NoError(t, err)
	require.Equal(t, "op-7", operatorID)
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret, jwa.HS256, "")

	_, err := v.Verify(signToken(t, jwa.HS384, nil))
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeUnauthorized))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret, jwa.HS256, "")
	v.clockSkew = 0

	token := signToken(t, jwa.HS256, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Minute))
	})
	_, err := v.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	v := NewVerifier(testSecret, jwa.HS256, "echef")

	token := signToken(t, jwa.HS256, func(b *jwt.Builder) {
		b.Issuer("someone-else")
	})
	_, err := v.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := NewVerifier(testSecret, jwa.HS256, "")

	_, err := v.Verify("   ")
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeUnauthorized))
}

func TestRequireOperatorStoresIdentityAndToken(t *testing.T) {
	m := Middleware{Verifier: NewVerifier(testSecret, jwa.HS256, "")}
	raw := signToken(t, jwa.HS256, nil)

	var gotOperator, gotToken string
	handler := m.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperator, _ = common.OperatorID(r.Context())
		gotToken, _ = common.AuthToken(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/current", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "op-7", gotOperator)
	require.Equal(t, raw, gotToken)
}

func TestRequireOperatorRejectsMissingHeader(t *testing.T) {
	m := Middleware{Verifier: NewVerifier(testSecret, jwa.HS256, "")}

	handler := m.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/current", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
