package controller

import (
	"challenge_backend/internal/service"
	"challenge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChallengeController struct {
	ChallengeService *service.ChallengeService
}

func NewChallengeController(challengeService *service.ChallengeService) *ChallengeController {
	return &ChallengeController{ChallengeService: challengeService}
}

type ChallengeCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Category    string `json:"category" binding:"required"`
	Duration    *int   `json:"duration"`
	Lifetime    *int   `json:"lifetime"`
}

type ChallengeInviteRequest struct {
	ChallengeID uint   `json:"challengeId" binding:"required"`
	ReceiverIDs []uint `json:"receiverIds" binding:"required,min=1"`
}

type ChallengeInviteAction struct {
	InvitationID uint `json:"invitationId" binding:"required"`
}

type ChallengeTitleUpdate struct {
	Title string `json:"title" binding:"required"`
}

type ChallengeDescriptionUpdate struct {
	Description string `json:"description"`
}

// CreateChallenge godoc
// @Summary Create a challenge
// @Description Duration is in minutes (1-1440, default 30), lifetime in hours (1-168, default 48)
// @Tags challenges
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChallengeCreateRequest true "challenge"
// @Success 201 {object} util.Response{data=service.ChallengeInfo}
// @Failure 400 {object} util.Response
// @Router /api/challenges/create [post]
func (c *ChallengeController) CreateChallenge(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req ChallengeCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	challenge, err := c.ChallengeService.Create(ctx.Request.Context(), userID, service.CreateChallengeParams{
		Title:       req.Title,
		Description: req.Description,
		Emoji:       req.Emoji,
		Category:    req.Category,
		Duration:    req.Duration,
		Lifetime:    req.Lifetime,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, c.ChallengeService.Info(challenge))
}

// Invite godoc
// @Summary Invite users to a challenge
// @Description Unknown and already invited users are skipped
// @Tags challenges
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChallengeInviteRequest true "invitees"
// @Success 200 {object} util.Response{data=object}
// @Failure 403 {object} util.Response "not the creator"
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "challenge not active"
// @Router /api/challenges/invite [post]
func (c *ChallengeController) Invite(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req ChallengeInviteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sent, err := c.ChallengeService.Invite(ctx.Request.Context(), req.ChallengeID, userID, req.ReceiverIDs)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"sent": sent})
}

// AcceptInvite godoc
// @Summary Accept a challenge invitation
// @Tags challenges
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChallengeInviteAction true "invitation"
// @Success 200 {object} util.Response{data=model.ChallengeInvitation}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "not pending or challenge over"
// @Router /api/challenges/accept [put]
func (c *ChallengeController) AcceptInvite(ctx *gin.Context) {
	c.respond(ctx, true)
}

// DeclineInvite godoc
// @Summary Decline a challenge invitation
// @Tags challenges
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChallengeInviteAction true "invitation"
// @Success 200 {object} util.Response{data=model.ChallengeInvitation}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "not pending"
// @Router /api/challenges/decline [put]
func (c *ChallengeController) DeclineInvite(ctx *gin.Context) {
	c.respond(ctx, false)
}

func (c *ChallengeController) respond(ctx *gin.Context, accept bool) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req ChallengeInviteAction
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	inv, err := c.ChallengeService.RespondToInvite(ctx.Request.Context(), req.InvitationID, userID, accept)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, inv)
}

// ListChallenges godoc
// @Summary My challenges
// @Description Active challenges the caller takes part in, and pending invitations
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ChallengeList}
// @Router /api/challenges/list [get]
func (c *ChallengeController) ListChallenges(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	list, err := c.ChallengeService.ListForUser(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetChallenge godoc
// @Summary Challenge details
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response{data=service.ChallengeDetail}
// @Failure 403 {object} util.Response "not invited"
// @Failure 404 {object} util.Response
// @Router /api/challenges/{id} [get]
func (c *ChallengeController) GetChallenge(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	detail, err := c.ChallengeService.Get(ctx.Request.Context(), id, userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// UpdateTitle godoc
// @Summary Rename a challenge
// @Tags challenges
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Param body body ChallengeTitleUpdate true "title"
// @Success 200 {object} util.Response{data=service.ChallengeInfo}
// @Router /api/challenges/{id}/title [put]
func (c *ChallengeController) UpdateTitle(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var req ChallengeTitleUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	challenge, err := c.ChallengeService.UpdateTitle(ctx.Request.Context(), id, userID, req.Title)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, c.ChallengeService.Info(challenge))
}

// UpdateDescription godoc
// @Summary Change a challenge description
// @Tags challenges
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Param body body ChallengeDescriptionUpdate true "description"
// @Success 200 {object} util.Response{data=service.ChallengeInfo}
// @Router /api/challenges/{id}/description [put]
func (c *ChallengeController) UpdateDescription(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var req ChallengeDescriptionUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	challenge, err := c.ChallengeService.UpdateDescription(ctx.Request.Context(), id, userID, req.Description)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, c.ChallengeService.Info(challenge))
}

// CancelChallenge godoc
// @Summary Cancel a challenge
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "already over"
// @Router /api/challenges/{id}/cancel [post]
func (c *ChallengeController) CancelChallenge(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if err := c.ChallengeService.Cancel(ctx.Request.Context(), id, userID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// DeleteChallenge godoc
// @Summary Delete a challenge
// @Description Removes the challenge with its invitations, submissions and views
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/challenges/{id} [delete]
func (c *ChallengeController) DeleteChallenge(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if err := c.ChallengeService.Delete(ctx.Request.Context(), id, userID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// Submit godoc
// @Summary Submit a photo
// @Tags challenges
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Param file formData file true "photo"
// @Param caption formData string false "caption"
// @Success 201 {object} util.Response{data=model.Submission}
// @Failure 400 {object} util.Response "not an image"
// @Failure 403 {object} util.Response "not a participant"
// @Failure 409 {object} util.Response "already submitted or challenge over"
// @Router /api/challenges/{id}/submit [post]
func (c *ChallengeController) Submit(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	data, err := formFile(ctx, "file", false)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	sub, err := c.ChallengeService.Submit(ctx.Request.Context(), id, userID, data, ctx.PostForm("caption"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, sub)
}

// ListSubmissions godoc
// @Summary Challenge photos
// @Description Open to participants who submitted; marks returned photos as seen
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response{data=[]service.SubmissionItem}
// @Failure 403 {object} util.Response
// @Router /api/challenges/{id}/submissions [get]
func (c *ChallengeController) ListSubmissions(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	items, err := c.ChallengeService.ListSubmissions(ctx.Request.Context(), id, userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// HasNew godoc
// @Summary Unseen photos badge
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response{data=bool}
// @Failure 403 {object} util.Response
// @Router /api/challenges/{id}/has-new [get]
func (c *ChallengeController) HasNew(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	unseen, err := c.ChallengeService.HasUnseen(ctx.Request.Context(), id, userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, unseen)
}

// RemoveParticipant godoc
// @Summary Remove a participant
// @Description Declines their invitation and erases their photo and view history
// @Tags challenges
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "challenge id"
// @Param userId path int true "participant id"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "creator cannot be removed"
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/challenges/{id}/participants/{userId} [delete]
func (c *ChallengeController) RemoveParticipant(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, err := util.ParamID(ctx, "id")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	participantID, err := util.ParamID(ctx, "userId")
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if err := c.ChallengeService.RemoveParticipant(ctx.Request.Context(), id, userID, participantID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"challengeId": id, "userId": participantID})
}
