package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adwatch/adwatch/errors"
)

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(ErrDatabaseClosed))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "context")))
	assert.True(t, IsDatabaseClosed(errors.New("sql: database is closed")))
	assert.False(t, IsDatabaseClosed(errors.New("some other error")))
}

func TestIsLocked(t *testing.T) {
	assert.False(t, IsLocked(nil))
	assert.True(t, IsLocked(errors.New("database is locked")))
	assert.True(t, IsLocked(errors.New("database table is locked")))
	assert.False(t, IsLocked(errors.New("constraint failed")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: ad_queries.nickname")))
	assert.False(t, IsUniqueViolation(errors.New("database is locked")))
}
