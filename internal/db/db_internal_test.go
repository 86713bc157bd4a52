package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSqlitePath(t *testing.T) {
	assert.Equal(t, "./data/cutout.db", sqlitePath("./data/cutout.db?_pragma=foreign_keys(1)"))
	assert.Equal(t, "/var/lib/cutout/app.db", sqlitePath("file:/var/lib/cutout/app.db"))
}

func TestPoolFor(t *testing.T) {
	assert.Equal(t, 1, poolFor("sqlite", ":memory:?_pragma=foreign_keys(1)").maxOpen)
	assert.Equal(t, 4, poolFor("sqlite", "./data/cutout.db").maxOpen)
	assert.Equal(t, 25, poolFor("pgx", "postgres://localhost/cutout").maxOpen)
}

func TestInitRejectsUnknownDriver(t *testing.T) {
	_, err := Init("mysql", "root@/cutout")
	assert.ErrorContains(t, err, "unsupported database driver")
}
