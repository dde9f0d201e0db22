package postgres

import (
	"fmt"
	"testing"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/tests"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/postgres/migrations"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_ConnectionString(t *testing.T) {
	t.Run("Builds a connection string with credentials", func(t *testing.T) {
		s, err := getConnectionString(&PostgresConfig{Host: "db", Port: 5432, DbName: "gov", Username: "u", Password: "p"})
		assert.Nil(t, err)
		assert.Equal(t, "host=db port=5432 dbname=gov sslmode=disable TimeZone=UTC user=u password=p", s)
	})
	t.Run("Rejects unknown ssl modes", func(t *testing.T) {
		_, err := getConnectionString(&PostgresConfig{SSLMode: "sometimes"})
		assert.NotNil(t, err)
	})
	t.Run("Certificates only apply when ssl is enabled", func(t *testing.T) {
		s, err := getConnectionString(&PostgresConfig{Host: "db", Port: 1, DbName: "gov", SSLMode: "require", SSLCert: "/c"})
		assert.Nil(t, err)
		assert.Contains(t, s, "sslcert=/c")
	})
}

func Test_IsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(&pq.Error{Code: "23505"}))
	assert.True(t, IsDuplicateKeyError(fmt.Errorf("ERROR: duplicate key value violates unique constraint \"votes_pkey\"")))
	assert.False(t, IsDuplicateKeyError(fmt.Errorf("connection refused")))
	assert.False(t, IsDuplicateKeyError(nil))
}

func Test_Migrations(t *testing.T) {
	if !tests.PostgresTestsEnabled() {
		t.Skip("Skipping postgres backed test")
	}
	l := zap.NewNop()
	dbCfg := tests.GetDbConfigFromEnv()

	dbName, pg, grm, err := GetTestPostgresDatabase(*dbCfg, l)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	t.Cleanup(func() {
		TeardownTestDatabase(dbName, *dbCfg, grm, l)
	})

	t.Run("Migrations are idempotent", func(t *testing.T) {
		assert.Nil(t, migrations.NewMigrator(pg, grm, l).MigrateAll())
	})
}
