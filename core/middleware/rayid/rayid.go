// Package rayid issues a unique request id per incoming request.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the response header carrying the generated id.
const HeaderName = "X-Ray-ID"

// New returns a middleware that stores a fresh ray id in the request
// locals and echoes it in the response headers. An id supplied by the
// caller in the request header is reused so multi-hop traces line up.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderName)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set(HeaderName, rid)
		return c.Next()
	}
}
