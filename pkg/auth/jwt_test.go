package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/model"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService("0123456789abcdef0123", time.Hour)
	require.NoError(t, err)

	staff := &model.Staff{Name: "Dr(a). Santos", Role: model.RoleDoctor}
	staff.ID = uuid.New()

	token, exp, err := svc.GenerateAccessToken(staff)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, claims.StaffID)
	assert.Equal(t, model.RoleDoctor, claims.Role)
	assert.Equal(t, "Dr(a). Santos", claims.Actor().Name)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService("0123456789abcdef0123", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTService("another-secret-entirely", time.Hour)
	require.NoError(t, err)

	staff := &model.Staff{Name: "X", Role: model.RoleNurse}
	staff.ID = uuid.New()
	token, _, err := other.GenerateAccessToken(staff)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := svc.(*hmacJWT)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateAccessToken(staff)
	require.NoError(t, err)
	expired.now = time.Now
	_, err = svc.ValidateToken(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("short", time.Hour)
	assert.Error(t, err)
}
