package testutil

import (
	"fmt"
	"testing"
	"time"

	"item-simulator/server/cache"
	"item-simulator/server/config"
	dbadapter "item-simulator/server/db"
	"item-simulator/server/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory sqlite DB and runs AutoMigrate.
// Each call gets its own named shared-cache database so the GORM
// connection pool sees one store and tests stay isolated from each other.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: dsn,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{})
	require.NoError(t, err, "SetupTestCache: NewCache")
	return c
}

// GameDefaults returns the game tuning used across tests.
func GameDefaults() config.GameConfig {
	return config.GameConfig{
		BaseHealth: 500,
		BasePower:  100,
		StartMoney: 10000,
		EarnAmount: 100,
		SellRate:   0.6,
	}
}

// SecurityDefaults returns a security config suitable for tests.
func SecurityDefaults() config.SecurityConfig {
	return config.SecurityConfig{
		JWTSecret:      "test-secret",
		JWTTTLH:        8 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}
