// Package forward provides helper functions for forwarding HTTP requests to use cases.
package forward

import (
	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
)

const codeInvalidPathParams = "INVALID_PATH_PARAMS"

// decodePath decodes the route's path params into the given request struct.
func decodePath[T_Req any](c *fiber.Ctx, req T_Req) error {
	if len(c.Route().Params) == 0 {
		return nil // No path params to decode
	}

	if err := c.ParamsParser(req); err != nil {
		return errx.Wrap(
			err,
			errx.WithType(errx.T_Validation),
			errx.WithCode(codeInvalidPathParams),
		)
	}

	return nil
}
