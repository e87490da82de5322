// Package middleware provides fiber middleware for caller resolution, logging,
// rate limiting and tracing.
package middleware

import (
	"socialfeed/internal/identity"
	"socialfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// CallerLocal is the fiber locals key holding the resolved *identity.Caller.
const CallerLocal = "caller"

// ResolveCaller attaches the request's caller (possibly nil) to fiber locals
// and the user context. It never rejects a request; operations that need an
// identity enforce that themselves.
func ResolveCaller(resolver identity.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := resolver.Resolve(c.Get(fiber.HeaderAuthorization))
		c.Locals(CallerLocal, caller)

		ctx := identity.WithCaller(c.UserContext(), caller)
		if caller != nil {
			ctx = observability.WithCaller(ctx, caller.IdentityID)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// CallerFrom returns the caller resolved for this request, or nil.
func CallerFrom(c *fiber.Ctx) *identity.Caller {
	caller, _ := c.Locals(CallerLocal).(*identity.Caller)
	return caller
}
