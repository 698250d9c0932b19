package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
	require.Nil(t, u.Location)
}

func TestUser_RememberLocation(t *testing.T) {
	u := NewUser(1, 10)
	u.RememberLocation(37.56, 126.94)
	require.True(t, u.Location.HasCoordinates())
	require.InDelta(t, 37.56, *u.Location.Latitude, 1e-9)
	require.InDelta(t, 126.94, *u.Location.Longitude, 1e-9)

	u.ForgetLocation()
	require.Nil(t, u.Location)
}
