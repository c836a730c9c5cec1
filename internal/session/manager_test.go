package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func newTestManager(t *testing.T) (*Manager, int64) {
	t.Helper()
	db := setupDB(t)
	uid := createUser(t, db, "alice")
	return NewManager(NewSQLiteStore(db, time.Hour), testSecret, time.Hour, false), uid
}

// sessionCookie returns the session cookie set on rec, failing if absent.
func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			require.Nil(t, found, "session cookie set twice")
			found = c
		}
	}
	require.NotNil(t, found, "no session cookie")
	return found
}

func requestWith(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func TestManager_SetUserThenUserID(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetUser(rec, requestWith(nil), uid))
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Positive(t, c.MaxAge)

	got, ok, err := m.UserID(requestWith(c))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uid, got)
}

func TestManager_NoCookie(t *testing.T) {
	m, _ := newTestManager(t)

	_, ok, err := m.UserID(requestWith(nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_TamperedCookieIsIgnored(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetUser(rec, requestWith(nil), uid))
	c := sessionCookie(t, rec)

	tampered := *c
	tampered.Value = c.Value + "A"
	_, ok, err := m.UserID(requestWith(&tampered))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_ForgedEnvelopeIsRejected(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetUser(rec, requestWith(nil), uid))

	// Same token, signed with another key.
	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(sessionCookie(t, rec).Value, claims)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-key"))
	require.NoError(t, err)
	_, ok, err := m.UserID(requestWith(&http.Cookie{Name: CookieName, Value: forged}))
	require.NoError(t, err)
	assert.False(t, ok)

	// Unsigned envelope.
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, ok, err = m.UserID(requestWith(&http.Cookie{Name: CookieName, Value: none}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_ExpiredEnvelopeIsIgnored(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetUser(rec, requestWith(nil), uid))

	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(sessionCookie(t, rec).Value, claims)
	require.NoError(t, err)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, ok, err := m.UserID(requestWith(&http.Cookie{Name: CookieName, Value: stale}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_ClearRevokesReplayedCookie(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetUser(rec, requestWith(nil), uid))
	c := sessionCookie(t, rec)

	clearRec := httptest.NewRecorder()
	require.NoError(t, m.Clear(clearRec, requestWith(c)))
	cleared := sessionCookie(t, clearRec)
	assert.Negative(t, cleared.MaxAge)

	// The old cookie is still correctly signed but its token is gone.
	_, ok, err := m.UserID(requestWith(c))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_ClearIsIdempotent(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetUser(rec, requestWith(nil), uid))
	c := sessionCookie(t, rec)

	for i := 0; i < 2; i++ {
		r := httptest.NewRecorder()
		require.NoError(t, m.Clear(r, requestWith(c)))
		assert.Negative(t, sessionCookie(t, r).MaxAge)
	}

	r := httptest.NewRecorder()
	require.NoError(t, m.Clear(r, requestWith(nil)))
	assert.Negative(t, sessionCookie(t, r).MaxAge)
}

func TestManager_ClearThenSetSendsOneCookie(t *testing.T) {
	m, uid := newTestManager(t)

	rec := httptest.NewRecorder()
	http.SetCookie(rec, &http.Cookie{Name: "other", Value: "keep"})
	req := requestWith(nil)
	require.NoError(t, m.Clear(rec, req))
	require.NoError(t, m.SetUser(rec, req, uid))

	c := sessionCookie(t, rec)
	assert.Positive(t, c.MaxAge)

	var names []string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
	}
	assert.ElementsMatch(t, []string{"other", CookieName}, names)
}
