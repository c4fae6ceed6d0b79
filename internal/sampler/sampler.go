package sampler

import (
	"math"
	"math/rand/v2"
)

// Sample is one drawn parameter value.
type Sample struct {
	Event     string
	Parameter string
	Value     float64
}

// Sampler draws parameter sets from a Spec.
//
// A Sampler is not safe for concurrent use; give each worker its own.
type Sampler struct {
	rows []Row
	rng  *rand.Rand
}

// New creates a sampler over spec. Samplers with the same non-zero seed and
// stream produce identical sequences; a zero seed picks a random one.
func New(spec *Spec, seed int64, stream uint64) *Sampler {
	s1 := uint64(seed)
	if seed == 0 {
		s1 = rand.Uint64()
	}
	return &Sampler{
		rows: append([]Row(nil), spec.Rows...),
		rng:  rand.New(rand.NewPCG(s1, stream)),
	}
}

// Draw returns one independent sample for every row, in spec order.
func (s *Sampler) Draw() []Sample {
	out := make([]Sample, len(s.rows))
	for i, row := range s.rows {
		out[i] = Sample{
			Event:     row.Event,
			Parameter: row.Parameter,
			Value:     s.draw(row),
		}
	}
	return out
}

func (s *Sampler) draw(row Row) float64 {
	switch row.Kind {
	case KindNormal:
		return row.Mean + s.rng.NormFloat64()*row.StdDev
	case KindUniform:
		lo := row.Mean - row.HalfWidth
		return lo + s.rng.Float64()*2*row.HalfWidth
	case KindVonMises:
		return vonMisesDegrees(s.rng, row.Mean, row.StdDev)
	}
	panic("sampler: unknown distribution " + string(row.Kind))
}

// vonMisesDegrees draws an angle in [0, 360) from a von Mises distribution
// with the given mean direction and angular standard deviation, both in
// degrees. Concentration is approximated as kappa = 1/sd^2 (sd in radians).
func vonMisesDegrees(rng *rand.Rand, meanDeg, sdDeg float64) float64 {
	sd := sdDeg * math.Pi / 180
	kappa := 1 / (sd * sd)
	theta := meanDeg*math.Pi/180 + vonMises(rng, kappa)

	deg := math.Mod(theta*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// vonMises returns a deviation in [-pi, pi] around zero using the
// Best-Fisher rejection sampler.
func vonMises(rng *rand.Rand, kappa float64) float64 {
	if kappa < 1e-8 {
		return math.Pi * (2*rng.Float64() - 1)
	}
	if kappa > 1e6 {
		return rng.NormFloat64() / math.Sqrt(kappa)
	}

	s := 0.5 / kappa
	r := s + math.Sqrt(1+s*s)

	var w float64
	for {
		u := rng.Float64()
		z := math.Cos(math.Pi * u)
		w = (1 + r*z) / (r + z)
		y := kappa * (r - w)
		v := rng.Float64()
		if y*(2-y)-v >= 0 || math.Log(y/v)+1-y >= 0 {
			break
		}
	}

	// Rounding can push w just outside [-1, 1].
	w = math.Max(-1, math.Min(1, w))
	dev := math.Acos(w)
	if rng.Float64() < 0.5 {
		dev = -dev
	}
	return dev
}
