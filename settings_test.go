package hll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SettingsValidate(t *testing.T) {

	defaults := Settings{
		Log2m:    11,
		Regwidth: 5,
	}
	// sanity check...ensure defaults are valid since we will use it as a base for all the tests.
	require.NoError(t, defaults.validate())

	t.Run("Log2m", func(t *testing.T) {
		s := defaults
		s.Log2m = minimumLog2mParam - 1
		err := s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "log2m")
		assert.ErrorIs(t, err, ErrInvalidParameter)

		s.Log2m = minimumLog2mParam
		assert.NoError(t, s.validate())

		s.Log2m = maximumLog2mParam
		assert.NoError(t, s.validate())

		s.Log2m = maximumLog2mParam + 1
		err = s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "log2m")
	})

	t.Run("Regwidth", func(t *testing.T) {
		s := defaults
		s.Regwidth = minimumRegwidthParam - 1
		err := s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "regwidth")

		s.Regwidth = minimumRegwidthParam
		assert.NoError(t, s.validate())

		s.Regwidth = maximumRegwidthParam
		assert.NoError(t, s.validate())

		s.Regwidth = maximumRegwidthParam + 1
		err = s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "regwidth")
	})

	t.Run("ExplicitThreshold", func(t *testing.T) {
		s := defaults
		s.ExplicitThreshold = minimumExpthreshParam - 1
		err := s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expthresh")

		s.ExplicitThreshold = minimumExpthreshParam
		assert.NoError(t, s.validate())

		s.ExplicitThreshold = maximumExplicitThreshold
		assert.NoError(t, s.validate())

		s.ExplicitThreshold = maximumExplicitThreshold + 1
		err = s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expthresh")

		s.ExplicitThreshold = 100 // not a power of two
		err = s.validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "power of two")
	})
}

func Test_Settings_calculateExplicitThreshold(t *testing.T) {
	assert.Equal(t, 160, calculateExplicitThreshold(11, 5))
	assert.Equal(t, 384, calculateExplicitThreshold(12, 6))
}

func Test_Settings_toExternal(t *testing.T) {

	originalSettings := []Settings{
		{
			Log2m:             5,
			Regwidth:          4,
			ExplicitThreshold: AutoExplicitThreshold,
			SparseEnabled:     true,
		},
		{
			Log2m:             8,
			Regwidth:          5,
			ExplicitThreshold: 0,
			SparseEnabled:     false,
		},
		{
			Log2m:             11,
			Regwidth:          6,
			ExplicitThreshold: 256,
			SparseEnabled:     true,
		},
	}

	for _, settings := range originalSettings {
		internalSettings, err := settings.toInternal()
		require.NoError(t, err)
		assert.Equal(t, settings, internalSettings.toExternal())
	}
}

func Test_Defaults(t *testing.T) {
	s := Settings{
		Log2m:    11,
		Regwidth: 5,
	}

	// reset the defaults on the way out of this function
	defer resetDefaults()
	resetDefaults()

	err := Defaults(s)
	require.NoError(t, err)

	// this is allowed b/c the settings are the same.
	err = Defaults(s)
	require.NoError(t, err)

	// this is not allowed!
	s.Regwidth = 4
	err = Defaults(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already been installed")

	// this is also not allowed b/c settings are bad.
	s.Regwidth = 0
	err = Defaults(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "regwidth")
}

func resetDefaults() {
	DefaultConfig = NewConfig()
}

func BenchmarkSettingsToInternal(b *testing.B) {
	s := Settings{
		Log2m:    11,
		Regwidth: 5,
	}

	for i := 0; i < b.N; i++ {
		s.toInternal()
	}
}
