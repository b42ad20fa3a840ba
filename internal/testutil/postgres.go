// Package testutil provides PostgreSQL fixtures for integration tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/serroba/turl/internal/sim"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"
)

const postgresImage = "postgres:16-alpine"

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// DatabaseURL returns DATABASE_URL when set, otherwise the URL of a shared PostgreSQL container.
// The test is skipped when neither is available.
func DatabaseURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		ctr, err := postgres.Run(ctx, postgresImage,
			postgres.WithDatabase("turl"),
			postgres.WithUsername("turl"),
			postgres.WithPassword("turl"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerErr = err

			return
		}

		containerURL, containerErr = ctr.ConnectionString(ctx, "sslmode=disable")
	})

	if containerErr != nil {
		t.Skipf("PostgreSQL not available: %v", containerErr)
	}

	return containerURL
}

// Database opens a migrated throwaway schema that is dropped when the test ends.
func Database(t *testing.T) *sim.Database {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sim.OpenDatabase(ctx, DatabaseURL(t), "", zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}

	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()

		if err := db.Close(closeCtx); err != nil {
			t.Logf("close test database: %v", err)
		}
	})

	return db
}
