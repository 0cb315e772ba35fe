package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"budgetbee/internal/models"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "budgetbee_session"

const sessionIssuer = "budgetbee"

// ErrUnauthenticated means the request carries no valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

// sessionClaims carries the username in sub and the session ID in jti.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager issues, reads and ends cookie sessions. The cookie is an
// HS256 token signed with the server secret; ended sessions are remembered in
// a RevocationStore until they would have expired anyway.
type SessionManager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

// NewSessionManager creates a session manager.
func NewSessionManager(secret []byte, ttl time.Duration, revoked RevocationStore) *SessionManager {
	return &SessionManager{
		secret:  secret,
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

// Issue mints a signed token for username.
func (m *SessionManager) Issue(username string) (string, *models.Session, error) {
	now := m.now()
	session := &models.Session{
		ID:        uuid.NewString(),
		Username:  username,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   session.Username,
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, session, nil
}

// Parse verifies a token and returns its session. Any defect, including
// revocation, yields ErrUnauthenticated; store failures are returned wrapped.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*models.Session, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrUnauthenticated
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}

	session := &models.Session{
		ID:        claims.ID,
		Username:  claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// Start binds username to the client by setting the session cookie.
func (m *SessionManager) Start(c echo.Context, username string) (*models.Session, error) {
	token, session, err := m.Issue(username)
	if err != nil {
		return nil, err
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request().TLS != nil, // Secure if HTTPS
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
	})
	c.Set(ContextKeySession, session)

	return session, nil
}

// Current returns the session bound to the request, or ErrUnauthenticated.
func (m *SessionManager) Current(c echo.Context) (*models.Session, error) {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return m.Parse(c.Request().Context(), cookie.Value)
}

// End revokes the current session, if any, and clears the cookie.
func (m *SessionManager) End(c echo.Context) error {
	var revokeErr error
	if session, err := m.Current(c); err == nil {
		revokeErr = m.revoked.Revoke(c.Request().Context(), session.ID, session.ExpiresAt)
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	c.Set(ContextKeySession, nil)

	if revokeErr != nil {
		return fmt.Errorf("revoke session: %w", revokeErr)
	}
	return nil
}
