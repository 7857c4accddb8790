package controller

import (
	"fmt"

	"challenge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUserID writes a 401 and returns false when no claims are set.
func currentUserID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	return claims.UserID, true
}

// formFile reads a multipart file field, bounded by util.MaxUploadSize.
func formFile(ctx *gin.Context, field string, imageOnly bool) ([]byte, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: multipart field %q is required", util.ErrInvalidOperation, field)
	}
	if header.Size > util.MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", util.ErrInvalidOperation, util.MaxUploadSize)
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if imageOnly {
		return util.ReadImageUpload(f)
	}
	return util.ReadUpload(f)
}
