package world

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometry_Clamp(t *testing.T) {
	g := NewGeometry(800, 600)

	assert.Equal(t, orb.Point{0, 600}, g.Clamp(orb.Point{-5, 610}))
	assert.Equal(t, orb.Point{800, 0}, g.Clamp(orb.Point{900, -1}))
	assert.Equal(t, orb.Point{12.5, 40}, g.Clamp(orb.Point{12.5, 40}))
	assert.True(t, g.Contains(orb.Point{800, 600}))
	assert.False(t, g.Contains(orb.Point{800.1, 600}))
}

func TestGeometry_FlightRadius(t *testing.T) {
	assert.Equal(t, 72.0, NewGeometry(800, 600).FlightRadius(0.12, 5))
	assert.Equal(t, 90.0, NewGeometry(600, 1100).FlightRadius(0.15, 5))
	assert.Equal(t, 5.0, NewGeometry(20, 20).FlightRadius(0.12, 5))
}

func TestDistanceSquared(t *testing.T) {
	assert.Equal(t, 25.0, DistanceSquared(orb.Point{0, 0}, orb.Point{3, 4}))
}

func TestParseSiting(t *testing.T) {
	s, err := ParseSiting("")
	require.NoError(t, err)
	assert.Equal(t, SitingUniform, s)

	s, err = ParseSiting("moisture")
	require.NoError(t, err)
	assert.Equal(t, SitingMoisture, s)

	_, err = ParseSiting("swamp")
	require.Error(t, err)
}

func TestPlaceHabitats_UniformInsideMargin(t *testing.T) {
	g := NewGeometry(800, 600)
	sites := PlaceHabitats(g, 50, 30, SitingUniform, 0, 7)
	require.Len(t, sites, 50)
	for _, p := range sites {
		assert.GreaterOrEqual(t, p[0], 30.0)
		assert.LessOrEqual(t, p[0], 770.0)
		assert.GreaterOrEqual(t, p[1], 30.0)
		assert.LessOrEqual(t, p[1], 570.0)
		assert.Equal(t, float64(int(p[0])), p[0], "whole-unit coordinates")
	}
}

func TestPlaceHabitats_Deterministic(t *testing.T) {
	g := NewGeometry(400, 400)
	for _, siting := range []Siting{SitingUniform, SitingMoisture} {
		a := PlaceHabitats(g, 6, 20, siting, 50, 99)
		b := PlaceHabitats(g, 6, 20, siting, 50, 99)
		assert.Equal(t, a, b, string(siting))
	}
}

func TestPlaceHabitats_MoistureSpacing(t *testing.T) {
	g := NewGeometry(800, 600)
	sites := PlaceHabitats(g, 4, 30, SitingMoisture, 72, 3)
	require.Len(t, sites, 4)
	for i := range sites {
		assert.True(t, g.Contains(sites[i]))
		for j := i + 1; j < len(sites); j++ {
			assert.GreaterOrEqual(t, DistanceSquared(sites[i], sites[j]), 72.0*72.0)
		}
	}
}

func TestPlaceHabitats_MarginTooLarge(t *testing.T) {
	g := NewGeometry(40, 40)
	sites := PlaceHabitats(g, 10, 30, SitingUniform, 0, 1)
	require.Len(t, sites, 10)
	for _, p := range sites {
		assert.True(t, g.Contains(p))
	}
}

func TestPlaceHabitats_None(t *testing.T) {
	assert.Nil(t, PlaceHabitats(NewGeometry(100, 100), 0, 10, SitingUniform, 0, 1))
}
