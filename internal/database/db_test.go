package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConfigTranslatesDriverErrors(t *testing.T) {
	cfg := gormConfig()
	require.NotNil(t, cfg)

	// The repositories rely on gorm sentinels (ErrDuplicatedKey for the
	// favorites unique index); without translation a unique violation
	// surfaces as a raw driver error and the duplicate branch never fires.
	assert.True(t, cfg.TranslateError)
	assert.NotNil(t, cfg.Logger)
}
