package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseEnabledRequiresHostAndUser(t *testing.T) {
	var cfg Config
	assert.False(t, cfg.DatabaseEnabled())

	cfg.Database.Host = "localhost"
	assert.False(t, cfg.DatabaseEnabled())

	cfg.Database.User = "postgres"
	assert.True(t, cfg.DatabaseEnabled())
}

func TestUpstreamURLs(t *testing.T) {
	var cfg Config
	cfg.N8N.BaseURL = "http://localhost:5678/"
	cfg.N8N.WebhookPath = "/webhook/upload-code"

	assert.Equal(t, "http://localhost:5678/webhook/upload-code", cfg.WebhookURL())
	assert.Equal(t, "http://localhost:5678/health", cfg.HealthURL())
}
