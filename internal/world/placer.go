// Habitat placement: picks breeding-site locations inside the world margin.
package world

import (
	"fmt"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/paulmach/orb"
)

// Siting selects how habitats are placed.
type Siting string

const (
	// SitingUniform draws integer coordinates uniformly inside the margin.
	SitingUniform Siting = "uniform"
	// SitingMoisture prefers the wettest sites of a simplex moisture field.
	SitingMoisture Siting = "moisture"
)

// ParseSiting validates a siting name.
func ParseSiting(s string) (Siting, error) {
	switch Siting(s) {
	case SitingUniform, "":
		return SitingUniform, nil
	case SitingMoisture:
		return SitingMoisture, nil
	default:
		return "", fmt.Errorf("unknown habitat siting %q", s)
	}
}

// candidatesPerHabitat is how many moisture samples are scored per requested site.
const candidatesPerHabitat = 25

// PlaceHabitats returns n habitat positions. minSpacing only applies to
// moisture siting, where sites closer than it are skipped while better
// separated ones remain.
func PlaceHabitats(g Geometry, n int, margin float64, siting Siting, minSpacing float64, seed int64) []orb.Point {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed + 200))

	if siting == SitingMoisture {
		return placeByMoisture(g, n, margin, minSpacing, seed, rng)
	}

	points := make([]orb.Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, randomSite(g, margin, rng))
	}
	return points
}

// randomSite draws whole-unit coordinates in [margin, size-margin]. A margin
// that does not fit collapses to zero.
func randomSite(g Geometry, margin float64, rng *rand.Rand) orb.Point {
	lo, hiX, hiY := int(margin), int(g.Width())-int(margin), int(g.Height())-int(margin)
	if hiX < lo || hiY < lo {
		lo, hiX, hiY = 0, int(g.Width()), int(g.Height())
	}
	x := lo + rng.Intn(hiX-lo+1)
	y := lo + rng.Intn(hiY-lo+1)
	return orb.Point{float64(x), float64(y)}
}

func placeByMoisture(g Geometry, n int, margin, minSpacing float64, seed int64, rng *rand.Rand) []orb.Point {
	broad := opensimplex.NewNormalized(seed)
	detail := opensimplex.NewNormalized(seed + 1)

	scale := g.Width()
	if g.Height() > scale {
		scale = g.Height()
	}
	scale /= 3
	if scale <= 0 {
		scale = 1
	}

	type scored struct {
		point orb.Point
		score float64
	}
	candidates := make([]scored, 0, n*candidatesPerHabitat)
	for i := 0; i < n*candidatesPerHabitat; i++ {
		p := randomSite(g, margin, rng)
		// Two octaves: broad wetlands plus local puddles.
		s := 0.7*broad.Eval2(p[0]/scale, p[1]/scale) +
			0.3*detail.Eval2(p[0]*4/scale, p[1]*4/scale)
		candidates = append(candidates, scored{p, s})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var sites []orb.Point
	taken := make([]bool, len(candidates))
	for i, c := range candidates {
		if len(sites) >= n {
			break
		}
		if tooClose(c.point, sites, minSpacing) {
			continue
		}
		taken[i] = true
		sites = append(sites, c.point)
	}

	// Crowded worlds: fill the rest from the best remaining candidates.
	for i, c := range candidates {
		if len(sites) >= n {
			break
		}
		if !taken[i] {
			sites = append(sites, c.point)
		}
	}
	return sites
}

func tooClose(p orb.Point, sites []orb.Point, minDist float64) bool {
	if minDist <= 0 {
		return false
	}
	for _, s := range sites {
		if DistanceSquared(p, s) < minDist*minDist {
			return true
		}
	}
	return false
}
