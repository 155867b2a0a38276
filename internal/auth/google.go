package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity fields this service consumes from a verified
// Google ID token.
type Claims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier checks a caller-supplied identity token. Implementations other
// than Google exist only in tests.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Claims, error)
}

// GoogleJWKSURL serves the signing keys Google ID tokens are issued under.
const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// Unavailable returns a verifier that fails every request with the given
// startup error. Used so serving still comes up when the JWKS fetch fails.
func Unavailable(err error) Verifier { return unavailableVerifier{err: err} }

type unavailableVerifier struct{ err error }

func (u unavailableVerifier) Verify(context.Context, string) (*Claims, error) {
	return nil, fmt.Errorf("token verification unavailable: %w", u.err)
}

type googleVerifier struct {
	jwks     *keyfunc.JWKS
	clientID string
}

// NewGoogleVerifier fetches and caches Google's JWKS and returns a verifier
// that checks signature, issuer and the OAuth client id audience.
func NewGoogleVerifier(clientID string) (Verifier, error) {
	jwks, err := keyfunc.Get(GoogleJWKSURL, keyfunc.Options{
		RefreshInterval: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch google jwks: %w", err)
	}
	return &googleVerifier{jwks: jwks, clientID: clientID}, nil
}

func (g *googleVerifier) Verify(_ context.Context, idToken string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuedAt(),
		jwt.WithIssuer("https://accounts.google.com"),
	}
	if g.clientID != "" {
		opts = append(opts, jwt.WithAudience(g.clientID))
	}
	token, err := jwt.Parse(idToken, g.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid google token")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid google token claims")
	}

	c := &Claims{}
	c.Subject, _ = mc["sub"].(string)
	c.Email, _ = mc["email"].(string)
	c.Name, _ = mc["name"].(string)
	c.Picture, _ = mc["picture"].(string)
	return c, nil
}
