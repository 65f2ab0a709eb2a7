package session

import (
	"context"
	"testing"
	"time"

	"dtadmin/internal/permissions"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeCases(t *testing.T) map[string]TokenStore {
	t.Helper()
	fs, err := NewFileStore(afero.NewMemMapFs(), "/home/admin/.config/dtadmin/session.json")
	require.NoError(t, err)
	return map[string]TokenStore{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStores_SetGetClear(t *testing.T) {
	ctx := context.Background()
	for name, st := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			v, err := st.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			assert.Empty(t, v)

			require.NoError(t, st.Set(ctx, map[Key]string{KeyAccessToken: "a1", KeyRefreshToken: "r1"}))
			require.NoError(t, st.Set(ctx, map[Key]string{KeyAccessToken: "a2"}))

			v, err = st.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, "a2", v)
			v, err = st.Get(ctx, KeyRefreshToken)
			require.NoError(t, err)
			assert.Equal(t, "r1", v, "partial set keeps other keys")

			require.NoError(t, st.Set(ctx, map[Key]string{KeyRefreshToken: ""}))
			v, err = st.Get(ctx, KeyRefreshToken)
			require.NoError(t, err)
			assert.Empty(t, v, "empty value removes the key")

			require.NoError(t, st.Clear(ctx))
			for _, k := range Keys {
				v, err = st.Get(ctx, k)
				require.NoError(t, err)
				assert.Empty(t, v, k)
			}
			// Clearing an empty store is fine.
			require.NoError(t, st.Clear(ctx))
		})
	}
}

func TestFileStore_CorruptDocument(t *testing.T) {
	fsys := afero.NewMemMapFs()
	st, err := NewFileStore(fsys, "/s/session.json")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, "/s/session.json", []byte("{nope"), 0o600))

	_, err = st.Get(context.Background(), KeyAccessToken)
	require.Error(t, err)
	require.NoError(t, st.Clear(context.Background()))
	_, err = st.Get(context.Background(), KeyAccessToken)
	require.NoError(t, err)
}

func TestLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	p := permissions.Set{CanSeeUsers: true}
	vals, err := Values("acc", "ref", &User{ID: 7, Email: "m@x.io", IsModerator: true}, &p)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, vals))

	s, err := Load(ctx, st)
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
	assert.Equal(t, "ref", s.RefreshToken)
	require.NotNil(t, s.User)
	assert.Equal(t, "moderator", s.User.Role())
	assert.True(t, s.Can(permissions.SeeUsers))
	assert.False(t, s.Can(permissions.ManageUsers))
}

func TestLoad_IgnoresCorruptDocuments(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Set(ctx, map[Key]string{KeyAccessToken: "a", KeyUser: "{", KeyPermissions: "[]"}))
	s, err := Load(ctx, st)
	require.NoError(t, err)
	assert.Nil(t, s.User)
	assert.Nil(t, s.Permissions)
	assert.False(t, s.Can(permissions.SeeDashboard))
}

func TestSession_AdminCanEverything(t *testing.T) {
	s := Session{AccessToken: "a", User: &User{IsAdmin: true}}
	for _, c := range permissions.All {
		assert.True(t, s.Can(c), c)
	}
}

func TestValues_ReplacesEveryKey(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Set(ctx, map[Key]string{KeyAccessToken: "old", KeyRefreshToken: "old-r", KeyUser: `{"id":1}`}))

	vals, err := Values("new", "", nil, nil)
	require.NoError(t, err)
	assert.Len(t, vals, len(Keys))
	require.NoError(t, st.Set(ctx, vals))

	s, err := Load(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "new", s.AccessToken)
	assert.Empty(t, s.RefreshToken)
	assert.Nil(t, s.User)
}

func TestValues_RequiresAccessToken(t *testing.T) {
	_, err := Values("", "r", nil, nil)
	require.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	signed, err := tok.SignedString([]byte("not-the-server-key"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
	_, ok = TokenExpiry("")
	assert.False(t, ok)
}
