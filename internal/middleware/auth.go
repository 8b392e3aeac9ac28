package middleware

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("missing bearer token")

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Email   string
	Admin   bool
}

// TokenVerifier checks a raw ID token and returns the caller.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// OIDCVerifier verifies Firebase (or any OIDC) ID tokens.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

type idClaims struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Admin         bool   `json:"admin"`
}

// Verify implements TokenVerifier.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var claims idClaims
	if err := token.Claims(&claims); err != nil {
		return nil, err
	}
	id := &Identity{Subject: token.Subject, Admin: claims.Admin}
	if id.Subject == "" {
		id.Subject = claims.UserID
	}
	if claims.EmailVerified {
		id.Email = strings.ToLower(claims.Email)
	}
	return id, nil
}

// AuthMiddleware authenticates API requests with bearer ID tokens. With a
// nil verifier every request passes and is treated as an admin, which is
// how local development runs.
type AuthMiddleware struct {
	verifier    TokenVerifier
	adminEmails []string
	logger      *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(verifier TokenVerifier, adminEmails []string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, adminEmails: adminEmails, logger: logger}
}

// Enabled reports whether tokens are checked.
func (m *AuthMiddleware) Enabled() bool {
	return m.verifier != nil
}

func (m *AuthMiddleware) authenticate(c fiber.Ctx) (*Identity, error) {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrNoToken
	}
	id, err := m.verifier.Verify(c.Context(), strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if !id.Admin && id.Email != "" && slices.Contains(m.adminEmails, id.Email) {
		id.Admin = true
	}
	return id, nil
}

// RequireAuth ensures the caller presents a valid token.
func (m *AuthMiddleware) RequireAuth(c fiber.Ctx) error {
	if !m.Enabled() {
		return c.Next()
	}
	id, err := m.authenticate(c)
	if err != nil {
		m.logger.Debug("rejected token", zap.String("path", c.Path()), zap.Error(err))
		return deny(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	c.Locals("identity", id)
	return c.Next()
}

// RequireOwner ensures the caller is the user named by the :userId route
// parameter, or an admin.
func (m *AuthMiddleware) RequireOwner(c fiber.Ctx) error {
	if !m.Enabled() {
		return c.Next()
	}
	id, err := m.authenticate(c)
	if err != nil {
		return deny(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	if !id.Admin && id.Subject != c.Params("userId") {
		return deny(c, fiber.StatusForbidden, "Forbidden")
	}
	c.Locals("identity", id)
	return c.Next()
}

// RequireAdmin ensures the caller is an admin.
func (m *AuthMiddleware) RequireAdmin(c fiber.Ctx) error {
	if !m.Enabled() {
		return c.Next()
	}
	id, err := m.authenticate(c)
	if err != nil {
		return deny(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	if !id.Admin {
		return deny(c, fiber.StatusForbidden, "Admin access required")
	}
	c.Locals("identity", id)
	return c.Next()
}

// IdentityFrom returns the authenticated caller, or nil.
func IdentityFrom(c fiber.Ctx) *Identity {
	id, _ := c.Locals("identity").(*Identity)
	return id
}

func deny(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
