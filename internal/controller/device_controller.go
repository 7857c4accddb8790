package controller

import (
	"challenge_backend/internal/service"
	"challenge_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DeviceController struct {
	DeviceService *service.DeviceService
}

func NewDeviceController(deviceService *service.DeviceService) *DeviceController {
	return &DeviceController{DeviceService: deviceService}
}

type RegisterDeviceRequest struct {
	FCMToken  string `json:"fcmToken" binding:"required"`
	Brand     string `json:"brand"`
	ModelName string `json:"modelName"`
	OSName    string `json:"osName"`
	OSVersion string `json:"osVersion"`
}

// RegisterDevice godoc
// @Summary Register a push token
// @Description Re-registering a token moves it to the caller
// @Tags devices
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body RegisterDeviceRequest true "device"
// @Success 200 {object} util.Response{data=model.Device}
// @Router /api/devices [post]
func (c *DeviceController) RegisterDevice(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req RegisterDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	device, err := c.DeviceService.Register(ctx.Request.Context(), userID, service.RegisterDeviceParams{
		FCMToken:  req.FCMToken,
		Brand:     req.Brand,
		ModelName: req.ModelName,
		OSName:    req.OSName,
		OSVersion: req.OSVersion,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, device)
}

// ListDevices godoc
// @Summary My devices
// @Tags devices
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Device}
// @Router /api/devices [get]
func (c *DeviceController) ListDevices(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	devices, err := c.DeviceService.List(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, devices)
}

// UnregisterDevice godoc
// @Summary Drop a push token
// @Tags devices
// @Produce json
// @Security ApiKeyAuth
// @Param token path string true "fcm token"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/devices/{token} [delete]
func (c *DeviceController) UnregisterDevice(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	if err := c.DeviceService.Unregister(ctx.Request.Context(), userID, ctx.Param("token")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
