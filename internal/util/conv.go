package util

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MustParseUint returns 0 when s is not a number.
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParamID reads a positive numeric path parameter.
func ParamID(c *gin.Context, name string) (uint, error) {
	id := MustParseUint(c.Param(name))
	if id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrInvalidOperation, name)
	}
	return id, nil
}
