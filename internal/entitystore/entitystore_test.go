package entitystore

import (
	"testing"

	"github.com/scigolib/spatialidx/internal/geometry"
	"github.com/scigolib/spatialidx/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type content struct{ Name string }

func TestAllocateIsMonotone(t *testing.T) {
	s := New[keys.OctKey, content]()
	a := s.Allocate()
	b := s.Allocate()
	assert.Less(t, a, b)
	assert.NotZero(t, a)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := New[keys.OctKey, content]()
	id := s.Allocate()
	pos := geometry.Point{X: 1, Y: 2, Z: 3}
	s.Put(id, pos, nil, content{Name: "widget"})

	gotPos, ok := s.GetPosition(id)
	require.True(t, ok)
	assert.Equal(t, pos, gotPos)

	gotContent, ok := s.GetContent(id)
	require.True(t, ok)
	assert.Equal(t, "widget", gotContent.Name)

	gotBounds, ok := s.GetBounds(id)
	require.True(t, ok)
	assert.Nil(t, gotBounds)
}

func TestAddRemoveLocation(t *testing.T) {
	s := New[keys.OctKey, content]()
	id := s.Allocate()
	s.Put(id, geometry.Point{}, nil, content{})

	k := keys.NewOctKey(0, 0, 0, 5)
	require.NoError(t, s.AddLocation(id, k))

	locs, ok := s.Locations(id)
	require.True(t, ok)
	assert.Contains(t, locs, k)

	s.RemoveLocation(id, k)
	locs, ok = s.Locations(id)
	require.True(t, ok)
	assert.NotContains(t, locs, k)
}

func TestAddLocationUnknownEntityFails(t *testing.T) {
	s := New[keys.OctKey, content]()
	err := s.AddLocation(EntityID(9999), keys.NewOctKey(0, 0, 0, 0))
	assert.Error(t, err)
}

func TestRemoveReturnsLocationsAndClearsEntity(t *testing.T) {
	s := New[keys.OctKey, content]()
	id := s.Allocate()
	s.Put(id, geometry.Point{}, nil, content{})
	k1 := keys.NewOctKey(0, 0, 0, 5)
	k2 := keys.NewOctKey(100, 100, 100, 5)
	require.NoError(t, s.AddLocation(id, k1))
	require.NoError(t, s.AddLocation(id, k2))

	locs, ok := s.Remove(id)
	require.True(t, ok)
	assert.Len(t, locs, 2)
	assert.False(t, s.Contains(id))
}

func TestStatsTracksLiveEntities(t *testing.T) {
	s := New[keys.OctKey, content]()
	assert.Equal(t, 0, s.Stats())
	id := s.Allocate()
	s.Put(id, geometry.Point{}, nil, content{})
	assert.Equal(t, 1, s.Stats())
	s.Remove(id)
	assert.Equal(t, 0, s.Stats())
}
