//go:build integration

package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func postgresDB(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "bookstore",
				"POSTGRES_PASSWORD": "bookstore",
				"POSTGRES_DB":       "bookstore",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	}
	container, err := testcontainers.GenericContainer(ctx, req)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://bookstore:bookstore@%s:%s/bookstore?sslmode=disable", host, port.Port())
	db, err := Open(ctx, Options{Driver: DriverPostgres, DSN: dsn, MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresSellerLifecycle(t *testing.T) {
	db := postgresDB(t)
	mgr := NewManager(db)
	ctx := context.Background()

	s, err := mgr.CreateSeller(ctx, IncomingSeller{FirstName: "John", LastName: "Johnson", Email: "jj13@gmail.com", Password: "johnLov13"})
	require.NoError(t, err)
	assert.NotZero(t, s.ID)

	_, err = mgr.CreateSeller(ctx, IncomingSeller{FirstName: "J", LastName: "J", Email: "jj13@gmail.com", Password: "x"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	bookID, err := mgr.AddBook(ctx, Book{Author: "Orwell", Title: "1984", Year: 1949, CountPages: 328, SellerID: s.ID})
	require.NoError(t, err)

	_, err = mgr.AddBook(ctx, Book{Author: "x", Title: "y", SellerID: s.ID + 1000})
	assert.ErrorIs(t, err, ErrRecordNotFound)

	full, err := mgr.GetSellerWithBooks(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, full.Books, 1)
	assert.Equal(t, bookID, full.Books[0].ID)

	upd, err := mgr.UpdateSeller(ctx, s.ID, UpdatedSeller{FirstName: "Jon", LastName: "J", Email: "jon@gmail.com"})
	require.NoError(t, err)
	assert.Equal(t, "jon@gmail.com", upd.Email)

	_, err = mgr.UpdateSeller(ctx, s.ID+1000, UpdatedSeller{FirstName: "a", LastName: "b", Email: "c"})
	assert.True(t, errors.Is(err, ErrRecordNotFound))

	require.NoError(t, mgr.DeleteSeller(ctx, s.ID))
	_, err = db.GetBook(ctx, bookID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	require.NoError(t, mgr.DeleteSeller(ctx, s.ID))
}
