package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID pulls the authenticated user's ID out of the context.
// JWTAuth stores the raw "sub" claim, which arrives as a float64 from
// JSON decoding or as a string from some issuers.  Returns 0 when no
// usable identity is present.
func currentUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case string:
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	case uint64:
		return v
	}
	return 0
}

// pathID parses a numeric path parameter, returning 0 when absent or
// malformed.
func pathID(c echo.Context, name string) uint64 {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
