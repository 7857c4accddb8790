package service

import (
	"context"
	"fmt"
	"strings"

	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/logger"

	"go.uber.org/zap"
)

type DeviceService struct {
	DeviceRepo *repository.DeviceRepository
}

func NewDeviceService(deviceRepo *repository.DeviceRepository) *DeviceService {
	return &DeviceService{DeviceRepo: deviceRepo}
}

type RegisterDeviceParams struct {
	FCMToken  string
	Brand     string
	ModelName string
	OSName    string
	OSVersion string
}

// Register binds the push token to userID, taking it over from whichever
// account held it before.
func (s *DeviceService) Register(ctx context.Context, userID uint, p RegisterDeviceParams) (*model.Device, error) {
	token := strings.TrimSpace(p.FCMToken)
	if token == "" {
		return nil, fmt.Errorf("%w: fcm token is required", util.ErrInvalidOperation)
	}
	d := &model.Device{
		UserID:    userID,
		FCMToken:  token,
		Brand:     p.Brand,
		ModelName: p.ModelName,
		OSName:    p.OSName,
		OSVersion: p.OSVersion,
	}
	if err := s.DeviceRepo.Upsert(ctx, d); err != nil {
		return nil, err
	}
	logger.Log.Debug("device registered", zap.Uint("user_id", userID), zap.String("os", p.OSName))
	return d, nil
}

func (s *DeviceService) Unregister(ctx context.Context, userID uint, token string) error {
	n, err := s.DeviceRepo.DeleteForUser(ctx, userID, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: device not registered", util.ErrNotFound)
	}
	return nil
}

func (s *DeviceService) List(ctx context.Context, userID uint) ([]model.Device, error) {
	return s.DeviceRepo.ListForUser(ctx, userID)
}
