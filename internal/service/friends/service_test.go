package friends

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "friends.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return New(st, nil), st
}

func createUser(t *testing.T, st *sqlite.SQLiteStore, login string) int64 {
	t.Helper()
	u, err := st.CreateUser(context.Background(), store.NewUser{Login: login, PasswordHash: "x"})
	require.NoError(t, err)
	return u.ID
}

func TestMutualOnlyAfterBothDirections(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	require.NoError(t, svc.AddDirectedEdge(ctx, alice, bob))

	ids, err := svc.MutualFriendIDs(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, ids, "one-directional edge must not count")

	require.NoError(t, svc.AddDirectedEdge(ctx, bob, alice))

	ids, err = svc.MutualFriendIDs(ctx, alice)
	require.NoError(t, err)
	require.Contains(t, ids, bob)

	ids, err = svc.MutualFriendIDs(ctx, bob)
	require.NoError(t, err)
	require.Contains(t, ids, alice)
}

func TestAddDirectedEdgeErrors(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	alice := createUser(t, st, "alice")

	require.ErrorIs(t, svc.AddDirectedEdge(ctx, alice, alice), ErrCannotFriendSelf)
	require.ErrorIs(t, svc.AddDirectedEdge(ctx, alice, alice+100), ErrUserNotFound)
}

func TestStoreFailureIsReturnedNotPanicked(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	svc := New(sqlite.NewFromDB(db), nil)
	mock.ExpectQuery("FROM friends").WillReturnError(errors.New("database is locked"))

	ids, err := svc.MutualFriendIDs(context.Background(), 1)
	require.Error(t, err)
	require.Nil(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
