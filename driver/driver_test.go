package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digoal/go-hll"
)

var testSettings = hll.Settings{
	Log2m:             11,
	Regwidth:          5,
	ExplicitThreshold: hll.AutoExplicitThreshold,
	SparseEnabled:     true,
}

func Test_Session_CreateAndAdd(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Create("visitors", testSettings))
	require.NoError(t, s.Add("visitors", 1))
	require.NoError(t, s.Add("visitors", 2))

	estimate, ok, err := s.Cardinality("visitors")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), estimate)
}

func Test_Session_CreateDuplicateFails(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Create("visitors", testSettings))
	err := s.Create("visitors", testSettings)
	require.Error(t, err)
}

func Test_Session_AddUnknownSketch(t *testing.T) {
	s := NewSession()
	err := s.Add("nope", 1)
	require.Error(t, err)
}

func Test_Session_Union(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Create("a", testSettings))
	require.NoError(t, s.Create("b", testSettings))

	require.NoError(t, s.Add("a", 1))
	require.NoError(t, s.Add("b", 2))

	require.NoError(t, s.Union("a", "b"))

	estimate, ok, err := s.Cardinality("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), estimate)

	// b is untouched
	bEstimate, ok, err := s.Cardinality("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(1), bEstimate)
}

func Test_Session_DumpAndLoad(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Create("a", testSettings))
	require.NoError(t, s.Add("a", 1))
	require.NoError(t, s.Add("a", 2))

	bytes, err := s.Dump("a")
	require.NoError(t, err)

	dst := NewSession()
	require.NoError(t, dst.Load("b", bytes))

	estimate, ok, err := dst.Cardinality("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), estimate)
}

func Test_Session_ConfigIsolation(t *testing.T) {
	a := NewSession()
	b := NewSession()

	require.NoError(t, a.Config().SetMaxSparse(0))
	assert.Equal(t, hll.AutoMaxSparse, b.Config().MaxSparse())
}
