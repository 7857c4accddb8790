// Package testutil wires throwaway stores for package tests.
package testutil

import (
	"testing"

	"challenge_backend/internal/model"
	"challenge_backend/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory sqlite database with every table migrated.
// A single connection keeps ":memory:" pointing at the same database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(false))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// NewRedis starts a miniredis server for the lifetime of the test.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// CreateUser inserts a user with a unique username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()

	u := &model.User{Username: username, DisplayName: username}
	require.NoError(t, db.Create(u).Error)
	return u
}
