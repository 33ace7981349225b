package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, &Session{ID: "a"}))
	require.NoError(t, store.Save(ctx, &Session{ID: "b"}))
	require.NoError(t, store.Save(ctx, &Session{ID: "c"}))
	assert.ElementsMatch(t, []string{"b", "c"}, mustIDs(t, store), "capacity evicts the oldest")

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	got.State = Authenticated
	again, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, again.State, "callers get copies")

	require.NoError(t, store.Delete(ctx, "b"))
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(10, 20*time.Millisecond)
	require.NoError(t, store.Save(context.Background(), &Session{ID: "a"}))
	assert.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), "a")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func mustIDs(t *testing.T, s Store) []string {
	t.Helper()
	ids, err := s.IDs(context.Background())
	require.NoError(t, err)
	return ids
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "admin", time.Hour)

	sess := &Session{
		ID:    "s1",
		State: Authenticated,
		Token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		User:  &User{Username: "bold", Roles: []string{"member"}},
	}
	data, err := json.Marshal(sess)
	require.NoError(t, err)

	mock.ExpectSet("sdyn:session:admin:s1", data, time.Hour).SetVal("OK")
	require.NoError(t, store.Save(ctx, sess))

	mock.ExpectGet("sdyn:session:admin:s1").SetVal(string(data))
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "bold", got.User.Username)
	assert.Equal(t, "r", got.Token.RefreshToken)
	assert.True(t, got.Token.Expiry.Equal(sess.Token.Expiry))

	mock.ExpectGet("sdyn:session:admin:gone").RedisNil()
	_, err = store.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectScan(0, "sdyn:session:admin:*", 100).SetVal([]string{"sdyn:session:admin:s1"}, 7)
	mock.ExpectScan(7, "sdyn:session:admin:*", 100).SetVal([]string{"sdyn:session:admin:s2"}, 0)
	assert.Equal(t, []string{"s1", "s2"}, mustIDs(t, store))

	mock.ExpectDel("sdyn:session:admin:s1").SetVal(1)
	require.NoError(t, store.Delete(ctx, "s1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
