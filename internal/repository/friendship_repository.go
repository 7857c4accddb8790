package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"challenge_backend/internal/model"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FriendshipRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewFriendshipRepository(db *gorm.DB, rdb *redis.Client) *FriendshipRepository {
	return &FriendshipRepository{
		DB:    db,
		Redis: rdb,
	}
}

func (r *FriendshipRepository) WithTx(tx *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{DB: tx, Redis: r.Redis}
}

func friendCacheKey(userID uint) string {
	return fmt.Sprintf("challenge:friends:%d", userID)
}

// CreateFriendship inserts the canonical edge. An existing edge is left as is.
func (r *FriendshipRepository) CreateFriendship(ctx context.Context, a, b uint) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model.NewFriendship(a, b)).Error
}

func (r *FriendshipRepository) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	lo, hi := model.CanonicalPair(a, b)
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("user1_id = ? AND user2_id = ?", lo, hi).
		Count(&count).Error
	return count > 0, err
}

func (r *FriendshipRepository) CountFriendships(ctx context.Context, a, b uint) (int64, error) {
	lo, hi := model.CanonicalPair(a, b)
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("user1_id = ? AND user2_id = ?", lo, hi).
		Count(&count).Error
	return count, err
}

func (r *FriendshipRepository) GetFriends(ctx context.Context, userID uint) ([]model.User, error) {
	var friends []model.User
	err := r.DB.WithContext(ctx).
		Joins("JOIN friendships ON (friendships.user1_id = ? AND friendships.user2_id = users.id) OR (friendships.user2_id = ? AND friendships.user1_id = users.id)", userID, userID).
		Order("users.display_name").
		Find(&friends).Error
	return friends, err
}

func (r *FriendshipRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var edges []model.Friendship
	err := r.DB.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].Other(userID))
	}
	return ids, nil
}

// GetFriendIDsCached reads through a redis set. Users without friends are
// cached as the sentinel member 0 with a short TTL.
func (r *FriendshipRepository) GetFriendIDsCached(ctx context.Context, userID uint) ([]uint, error) {
	if r.Redis == nil {
		return r.GetFriendIDs(ctx, userID)
	}

	key := friendCacheKey(userID)
	cached, err := r.Redis.SMembers(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		ids := make([]uint, 0, len(cached))
		for _, s := range cached {
			id, _ := strconv.ParseUint(s, 10, 64)
			if id > 0 {
				ids = append(ids, uint(id))
			}
		}
		return ids, nil
	}
	if err != nil {
		logger.Log.Warn("friend cache read failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	ids, err := r.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	pipe := r.Redis.Pipeline()
	if len(ids) > 0 {
		for _, id := range ids {
			pipe.SAdd(ctx, key, id)
		}
		pipe.Expire(ctx, key, util.FriendIDsCacheTTL)
	} else {
		pipe.SAdd(ctx, key, 0)
		pipe.Expire(ctx, key, time.Minute)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Warn("friend cache write failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return ids, nil
}

// InvalidateFriendCache must run after the friendship commit, not inside it.
func (r *FriendshipRepository) InvalidateFriendCache(ctx context.Context, userIDs ...uint) {
	if r.Redis == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, friendCacheKey(id))
	}
	if err := r.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("friend cache invalidation failed", zap.Uints("user_ids", userIDs), zap.Error(err))
	}
}

func (r *FriendshipRepository) CreateRequest(ctx context.Context, req *model.FriendRequest) error {
	return r.DB.WithContext(ctx).Create(req).Error
}

func (r *FriendshipRepository) GetRequest(ctx context.Context, id uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).First(&req, id).Error
	return &req, err
}

// FindLiveRequest returns the pending or accepted request between the pair in
// either direction.
func (r *FriendshipRepository) FindLiveRequest(ctx context.Context, a, b uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).Where("active_pair = ?", model.PairKey(a, b)).First(&req).Error
	return &req, err
}

// FindLatestRejected returns the most recent rejected request between the pair.
func (r *FriendshipRepository) FindLatestRejected(ctx context.Context, a, b uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).
		Where("status = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			model.RequestRejected, a, b, b, a).
		Order("id DESC").
		First(&req).Error
	return &req, err
}

// TransitionRequest moves a pending request to status and reports whether this
// call won the transition. Rejection releases the pair for a future request.
func (r *FriendshipRepository) TransitionRequest(ctx context.Context, id uint, status model.FriendRequestStatus, at time.Time) (bool, error) {
	fields := map[string]interface{}{
		"status":       status,
		"responded_at": at,
	}
	if status == model.RequestRejected {
		fields["active_pair"] = gorm.Expr("NULL")
	}
	res := r.DB.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, model.RequestPending).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *FriendshipRepository) GetPendingIncoming(ctx context.Context, userID uint) ([]model.FriendRequest, error) {
	var reqs []model.FriendRequest
	err := r.DB.WithContext(ctx).
		Preload("Sender").
		Where("receiver_id = ? AND status = ?", userID, model.RequestPending).
		Order("sent_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, err
}
