package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RATE_LIMIT_CAPACITY", "")

	require.NoError(t, Load())
	assert.True(t, IsDevelopment)
	assert.Equal(t, "sqlite", DBDriver)
	assert.Equal(t, "app.db", DatabaseURL)
	assert.Equal(t, 20, RateLimitCapacity)
	assert.Equal(t, "console", LogFormat)
	assert.NotEmpty(t, JWTSecret)
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	t.Setenv("APP_ENV", "qa")
	assert.Error(t, Load())
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET_KEY", "")
	assert.Error(t, Load())
}

func TestLoadRequiresDSNForServerDrivers(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	assert.Error(t, Load())
}

func TestAtoiOr(t *testing.T) {
	assert.Equal(t, 7, atoiOr("", 7))
	assert.Equal(t, 7, atoiOr("abc", 7))
	assert.Equal(t, 7, atoiOr("-3", 7))
	assert.Equal(t, 12, atoiOr("12", 7))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}
