package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "camera not found: v1", NewNotFoundError("camera", "v1").Error())
	assert.Equal(t, "invalid argument for shot.id: must not be empty",
		NewInvalidArgumentError("shot.id", "must not be empty").Error())
	assert.Equal(t, "invalid argument: bad", NewInvalidArgumentError("", "bad").Error())

	var nf *ErrNotFound
	require.True(t, errors.As(NewNotFoundError("point", "7"), &nf))
	assert.Equal(t, "point", nf.Resource)
}

func TestModes(t *testing.T) {
	assert.Equal(t, ModeUndistorted, ModeFor(true))
	assert.Equal(t, ModeDistorted, ModeFor(false))

	m, err := ParseMode("undistorted")
	require.NoError(t, err)
	assert.Equal(t, ModeUndistorted, m)

	_, err = ParseMode("fisheye")
	var invalid *ErrInvalidArgument
	assert.True(t, errors.As(err, &invalid))
}
