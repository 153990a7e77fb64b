package hll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, OutputVersion, cfg.OutputVersion())
	assert.Equal(t, AutoMaxSparse, cfg.MaxSparse())

	_, ok := cfg.Defaults()
	assert.False(t, ok)
}

func Test_Config_SetOutputVersion(t *testing.T) {
	cfg := NewConfig()
	require.Error(t, cfg.SetOutputVersion(2))
	require.NoError(t, cfg.SetOutputVersion(1))
	assert.Equal(t, 1, cfg.OutputVersion())
}

func Test_Config_SetMaxSparse(t *testing.T) {
	cfg := NewConfig()
	require.Error(t, cfg.SetMaxSparse(-2))
	require.NoError(t, cfg.SetMaxSparse(0))
	assert.Equal(t, 0, cfg.MaxSparse())
}

func Test_Config_SetDefaults_Idempotent(t *testing.T) {
	cfg := NewConfig()
	s := Settings{Log2m: 11, Regwidth: 5}

	require.NoError(t, cfg.SetDefaults(s))
	require.NoError(t, cfg.SetDefaults(s)) // same settings, allowed

	installed, ok := cfg.Defaults()
	require.True(t, ok)
	assert.Equal(t, s, installed)

	s.Regwidth = 6
	err := cfg.SetDefaults(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextMisuse)
}

func Test_Config_Isolation(t *testing.T) {
	a := NewConfig()
	b := NewConfig()

	require.NoError(t, a.SetMaxSparse(5))
	assert.Equal(t, AutoMaxSparse, b.MaxSparse())
}
