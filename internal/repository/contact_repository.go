package repository

import (
	"context"

	"challenge_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContactRepository struct {
	DB *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{DB: db}
}

// Replace swaps the user's whole address book in one transaction.
func (r *ContactRepository) Replace(ctx context.Context, userID uint, contacts []model.Contact) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Contact{}).Error; err != nil {
			return err
		}
		if len(contacts) == 0 {
			return nil
		}
		for i := range contacts {
			contacts[i].ID = 0
			contacts[i].UserID = userID
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&contacts, 200).Error
	})
}

func (r *ContactRepository) CountForUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Contact{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Recommendation is a user sharing address book entries with the caller.
type Recommendation struct {
	model.UserPublic
	MutualContacts int `json:"mutualContacts"`
}

type recommendationRow struct {
	UserID         uint
	MutualContacts int
}

// Recommend ranks other users by how many phone numbers their address book
// shares with userID's. Users in exclude are skipped.
func (r *ContactRepository) Recommend(ctx context.Context, userID uint, exclude []uint, limit int) ([]Recommendation, error) {
	mine := r.DB.Model(&model.Contact{}).Select("phone_number").Where("user_id = ?", userID)

	q := r.DB.WithContext(ctx).Model(&model.Contact{}).
		Select("contacts.user_id AS user_id, COUNT(*) AS mutual_contacts").
		Where("contacts.phone_number IN (?)", mine).
		Where("contacts.user_id <> ?", userID)
	if len(exclude) > 0 {
		q = q.Where("contacts.user_id NOT IN ?", exclude)
	}

	var rows []recommendationRow
	err := q.Group("contacts.user_id").
		Order("mutual_contacts DESC, contacts.user_id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	var users []model.User
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	recs := make([]Recommendation, 0, len(rows))
	for _, row := range rows {
		u, ok := byID[row.UserID]
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{UserPublic: u.Public(), MutualContacts: row.MutualContacts})
	}
	return recs, nil
}
