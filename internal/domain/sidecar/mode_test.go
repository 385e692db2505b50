package sidecar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLaunchMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LaunchMode
		wantErr bool
	}{
		{in: "dev", want: ModeDevelopment},
		{in: "Development", want: ModeDevelopment},
		{in: "debug", want: ModeDevelopment},
		{in: "prod", want: ModeProduction},
		{in: " production ", want: ModeProduction},
		{in: "release", want: ModeProduction},
		{in: "staging", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLaunchMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectMode(t *testing.T) {
	mode, err := SelectMode()
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, mode)

	mode, err = SelectMode("development", "", "")
	require.NoError(t, err)
	assert.Equal(t, ModeDevelopment, mode)

	mode, err = SelectMode("development", "production", "")
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, mode)

	_, err = SelectMode("production", "sideways")
	assert.Error(t, err)
}

func TestLaunchModeString(t *testing.T) {
	assert.Equal(t, "development", ModeDevelopment.String())
	assert.Equal(t, "production", ModeProduction.String())
	assert.Equal(t, "unknown(7)", LaunchMode(7).String())
}
