package controller

import (
	"challenge_backend/internal/service"
	"challenge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ContactController struct {
	ContactService *service.ContactService
}

func NewContactController(contactService *service.ContactService) *ContactController {
	return &ContactController{ContactService: contactService}
}

type ContactUploadRequest struct {
	Contacts []service.ContactEntry `json:"contacts" binding:"dive"`
}

// UploadContacts godoc
// @Summary Replace my address book
// @Tags contacts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ContactUploadRequest true "contacts"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Router /api/contacts/upload [post]
func (c *ContactController) UploadContacts(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req ContactUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stored, err := c.ContactService.Upload(ctx.Request.Context(), userID, req.Contacts)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"stored": stored})
}

// Recommendations godoc
// @Summary Friend suggestions from contacts
// @Description Users sharing phone numbers with my address book, friends excluded
// @Tags contacts
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.Recommendation}
// @Router /api/contacts/recommendations [get]
func (c *ContactController) Recommendations(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	recs, err := c.ContactService.Recommendations(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}
