package repository

import (
	"context"

	"challenge_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	DB *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{DB: db}
}

// Upsert registers the token for the device's user, moving it off any other
// account that held it before.
func (r *DeviceRepository) Upsert(ctx context.Context, d *model.Device) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fcm_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "brand", "model_name", "os_name", "os_version"}),
	}).Create(d).Error
}

func (r *DeviceRepository) DeleteForUser(ctx context.Context, userID uint, token string) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ? AND fcm_token = ?", userID, token).Delete(&model.Device{})
	return res.RowsAffected, res.Error
}

// DeleteTokens drops tokens the push provider reported as unregistered.
func (r *DeviceRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Where("fcm_token IN ?", tokens).Delete(&model.Device{}).Error
}

func (r *DeviceRepository) TokensForUser(ctx context.Context, userID uint) ([]string, error) {
	var tokens []string
	err := r.DB.WithContext(ctx).Model(&model.Device{}).Where("user_id = ?", userID).Pluck("fcm_token", &tokens).Error
	return tokens, err
}

func (r *DeviceRepository) ListForUser(ctx context.Context, userID uint) ([]model.Device, error) {
	var devices []model.Device
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&devices).Error
	return devices, err
}
