package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/types"
)

const identityKey = "identity"

// Redirects are where html clients are sent instead of a JSON error.
// Empty values disable the redirect.
type Redirects struct {
	LoginURL     string
	ForbiddenURL string
}

// Auth builds the authentication and permission middleware.
type Auth struct {
	Authenticator services.Authenticator
	Access        *services.AccessService
	Redirects     Redirects
}

// CurrentIdentity returns the identity resolved for the request, or nil.
func CurrentIdentity(c *fiber.Ctx) *services.Identity {
	identity, _ := c.Locals(identityKey).(*services.Identity)
	return identity
}

// CurrentUserID returns the id of the resolved identity, or nil for anonymous requests.
func CurrentUserID(c *fiber.Ctx) *string {
	if identity := CurrentIdentity(c); identity != nil {
		id := identity.ID
		return &id
	}
	return nil
}

// Optional resolves the identity when credentials are presented. Requests
// with missing or invalid credentials continue anonymously.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := a.Authenticator.Authenticate(c)
		if err != nil {
			if !errors.Is(err, services.ErrNoCredentials) {
				logging.Logger.WithField("error", err.Error()).Debug("ignoring invalid credentials on public route")
			}
			return c.Next()
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// Required rejects requests without a valid identity and records the user.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := a.Authenticator.Authenticate(c)
		if err != nil {
			message := "Authentication required"
			if !errors.Is(err, services.ErrNoCredentials) {
				message = fmt.Sprintf("Invalid credentials: %v", err)
			}
			if wantsHTML(c) && a.Redirects.LoginURL != "" {
				return c.Redirect(a.Redirects.LoginURL, fiber.StatusFound)
			}
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: message,
				Type:    "forms.authentication",
			}
		}

		if a.Access != nil {
			if _, err := a.Access.EnsureUser(c.UserContext(), *identity); err != nil {
				return err
			}
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// Permit lets the request through only when the identity holds every slug.
// It must run after Required.
func (a *Auth) Permit(slugs ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := CurrentIdentity(c)
		if identity == nil {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "Authentication required",
				Type:    "forms.authentication",
			}
		}

		for _, slug := range slugs {
			if err := a.Access.Require(c.UserContext(), identity.ID, slug); err != nil {
				logging.Logger.WithFields(logrus.Fields{
					"user_id":    identity.ID,
					"permission": slug,
					"path":       c.Path(),
				}).Info("permission denied")

				if wantsHTML(c) && a.Redirects.ForbiddenURL != "" {
					return c.Redirect(a.Redirects.ForbiddenURL, fiber.StatusFound)
				}
				return err
			}
		}
		return c.Next()
	}
}

// wantsHTML reports whether the client is a browser navigation rather than an API call.
func wantsHTML(c *fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, fiber.MIMETextHTML) && !strings.Contains(accept, fiber.MIMEApplicationJSON)
}
