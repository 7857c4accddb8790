package logger

import (
	"testing"

	"challenge_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		mode, level string
		want        string
	}{
		{mode: "debug", level: "", want: "debug"},
		{mode: "release", level: "", want: "info"},
		{mode: "release", level: "warn", want: "warn"},
		{mode: "debug", level: "error", want: "error"},
		{mode: "release", level: "nonsense", want: "info"},
	}
	for _, c := range cases {
		cfg := &config.Config{Server: config.ServerConfig{Mode: c.mode}, Log: config.LogConfig{Level: c.level}}
		assert.Equal(t, c.want, levelFor(cfg).String(), "mode=%s level=%s", c.mode, c.level)
	}
}

func TestApplyConfigChangesLevel(t *testing.T) {
	SetLevel(zap.InfoLevel)
	t.Cleanup(func() { SetLevel(zap.InfoLevel) })

	ApplyConfig(&config.Config{Log: config.LogConfig{Level: "warn"}})
	assert.Equal(t, zap.WarnLevel, Level())
}
