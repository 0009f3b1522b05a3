package config_test

import (
	"testing"

	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/assert"

	"scantrace/internal/config"
)

// The config is handed directly to cartridge.NewLogger and
// cartridge.NewApplication, so it must satisfy the full runtime interface.
var _ cartridge.Config = (*config.Config)(nil)

func TestConfigDefaults(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()

	assert.Equal(t, "scantrace", cfg.GetAppName())
	assert.NotEmpty(t, cfg.GetPort())
	assert.Equal(t, "public", cfg.GetPublicDirectory())
	assert.Equal(t, "/assets", cfg.GetAssetsPrefix())
}
