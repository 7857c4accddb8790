package controller

import (
	"challenge_backend/internal/service"
	"challenge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type FriendController struct {
	FriendshipService *service.FriendshipService
}

func NewFriendController(friendshipService *service.FriendshipService) *FriendController {
	return &FriendController{FriendshipService: friendshipService}
}

type FriendRequestCreate struct {
	ReceiverID uint `json:"receiverId" binding:"required"`
}

type FriendRequestAction struct {
	RequestID uint `json:"requestId" binding:"required"`
}

// AddFriend godoc
// @Summary Send a friend request
// @Description A pending request in the other direction is accepted instead
// @Tags friends
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body FriendRequestCreate true "receiver"
// @Success 201 {object} util.Response{data=service.FriendRequestResult}
// @Failure 400 {object} util.Response "request to self"
// @Failure 403 {object} util.Response "declined before"
// @Failure 404 {object} util.Response "unknown receiver"
// @Failure 409 {object} util.Response "already friends or pending"
// @Router /api/friends/add [post]
func (c *FriendController) AddFriend(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req FriendRequestCreate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.FriendshipService.SendRequest(ctx.Request.Context(), userID, req.ReceiverID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if res.AutoAccepted {
		util.Success(ctx, res)
		return
	}
	util.Created(ctx, res)
}

// AcceptRequest godoc
// @Summary Accept a friend request
// @Tags friends
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body FriendRequestAction true "request"
// @Success 200 {object} util.Response{data=service.FriendRequestResult}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "not pending"
// @Router /api/friends/accept [put]
func (c *FriendController) AcceptRequest(ctx *gin.Context) {
	c.respond(ctx, true)
}

// RejectRequest godoc
// @Summary Reject a friend request
// @Tags friends
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body FriendRequestAction true "request"
// @Success 200 {object} util.Response{data=service.FriendRequestResult}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "not pending"
// @Router /api/friends/reject [put]
func (c *FriendController) RejectRequest(ctx *gin.Context) {
	c.respond(ctx, false)
}

func (c *FriendController) respond(ctx *gin.Context, accept bool) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req FriendRequestAction
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.FriendshipService.Respond(ctx.Request.Context(), req.RequestID, userID, accept)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// ListFriends godoc
// @Summary List friends
// @Tags friends
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserPublic}
// @Router /api/friends/list [get]
func (c *FriendController) ListFriends(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	friends, err := c.FriendshipService.ListFriends(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, friends)
}

// ListRequests godoc
// @Summary Pending incoming friend requests
// @Tags friends
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.IncomingRequest}
// @Router /api/friends/requests [get]
func (c *FriendController) ListRequests(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	reqs, err := c.FriendshipService.ListPendingIncoming(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, reqs)
}
