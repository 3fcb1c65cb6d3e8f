package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	raw := RawProfile{ID: "u1", Name: strPtr("Kim")}

	p := Normalize(raw, "kim@dorm.local")

	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Kim", p.Name)
	assert.Equal(t, RoleStudent, p.Role)
	assert.Equal(t, 0, p.MeritPoints)
	assert.Equal(t, 0, p.DemeritPoints)
	assert.False(t, p.InfoComplete)
	assert.Equal(t, "kim@dorm.local", p.Email)
}

func TestNormalizeKeepsStoredValues(t *testing.T) {
	complete := true
	raw := RawProfile{
		ID:            "u2",
		Email:         strPtr("stored@dorm.local"),
		Name:          strPtr("Park"),
		Role:          strPtr(RoleAdmin),
		RoomNumber:    strPtr("302"),
		MeritPoints:   intPtr(5),
		DemeritPoints: intPtr(1),
		InfoComplete:  &complete,
	}

	p := Normalize(raw, "session@dorm.local")

	assert.Equal(t, "stored@dorm.local", p.Email) // stored email wins
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, "302", p.RoomNumber)
	assert.Equal(t, 5, p.MeritPoints)
	assert.Equal(t, 1, p.DemeritPoints)
	assert.True(t, p.InfoComplete)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := RawProfile{ID: "u1", Name: strPtr("Kim"), MeritPoints: intPtr(4)}

	first := Normalize(raw, "kim@dorm.local")
	second := Normalize(raw, "kim@dorm.local")

	assert.Equal(t, first, second)
}

func TestProfileCacheRoundTrip(t *testing.T) {
	p := Profile{ID: "u1", Name: "Kim", Role: RoleStudent, MeritPoints: 2, InfoComplete: true}

	encoded, err := EncodeProfile(p)
	require.NoError(t, err)

	decoded, err := DecodeProfile(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestMinimalProfileIsIncomplete(t *testing.T) {
	p := MinimalProfile("fresh", "new@dorm.local")

	assert.Equal(t, "fresh", p.ID)
	assert.Equal(t, "new@dorm.local", p.Email)
	assert.Equal(t, RoleStudent, p.Role)
	assert.False(t, p.InfoComplete)
}

func TestSessionRefreshDue(t *testing.T) {
	now := time.Now()
	s := Session{Identity: "u1", ExpiresAt: now.Add(3 * time.Minute)}

	assert.True(t, s.Valid(now))
	assert.True(t, s.RefreshDue(now, 5*time.Minute))

	far := Session{Identity: "u1", ExpiresAt: now.Add(time.Hour)}
	assert.False(t, far.RefreshDue(now, 5*time.Minute))

	expired := Session{Identity: "u1", ExpiresAt: now.Add(-time.Minute)}
	assert.False(t, expired.Valid(now))
	assert.False(t, expired.RefreshDue(now, 5*time.Minute))
}
