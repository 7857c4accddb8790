package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"challenge_backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", DBName: "c", Charset: "utf8mb4"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	d, err = Dialector(&config.DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", DBName: "c", SSLMode: "disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInitRedis(t *testing.T) {
	rdb, err := InitRedis(&config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)

	mr := miniredis.RunT(t)
	rdb, err = InitRedis(&config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr.Port())})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	defer rdb.Close()
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}

type lineCounter struct{ lines []string }

func (w *lineCounter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	w := &lineCounter{}
	l := newGormLogger(w, gormlogger.Warn)
	sql := func() (string, int64) { return "SELECT * FROM friend_requests", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, w.lines)

	l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	require.Len(t, w.lines, 1)
	assert.Contains(t, w.lines[0], "connection reset")
}
