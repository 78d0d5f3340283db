package ml

import (
	"errors"
	"math"
	"math/rand"

	"exointel/features"
)

// SyntheticCatalog is a generated KOI training set. X rows follow the
// canonical feature order; Labels is the disposition target (1 CONFIRMED,
// 0 FALSE POSITIVE) and Radii the regression target in Earth radii.
type SyntheticCatalog struct {
	FeatureNames []string
	X            [][]float64
	Labels       []int
	Radii        []float64
}

// GenerateSyntheticCatalog draws a catalog of physically correlated transit
// candidates. Independent stellar and signal parameters follow Kepler-like
// distributions; dependent features are derived from transit physics with
// multiplicative noise, so a model can actually learn the relations the
// serving path is asked about.
func GenerateSyntheticCatalog(samples int, seed int64) (*SyntheticCatalog, error) {
	if samples <= 0 {
		return nil, errors.New("samples must be positive")
	}
	rng := rand.New(rand.NewSource(seed))

	names := features.Names()
	catalog := &SyntheticCatalog{
		FeatureNames: names,
		X:            make([][]float64, 0, samples),
		Labels:       make([]int, 0, samples),
		Radii:        make([]float64, 0, samples),
	}

	for i := 0; i < samples; i++ {
		period := rng.ExpFloat64()*50 + 0.5
		srad := math.Exp(rng.NormFloat64() * 0.5)
		steff := 5700 + rng.NormFloat64()*1000
		smass := math.Pow(srad, 0.8) * (1 + rng.NormFloat64()*0.1)
		slogg := 4.44 - math.Log10(srad) + rng.NormFloat64()*0.1
		kepmag := 8 + rng.Float64()*8
		impact := rng.Float64() * 1.2
		score := betaSample(rng, 2, 2)
		qof := betaSample(rng, 5, 1)

		// Planet radius: log-uniform between 0.5 and 20 Earth radii.
		prad := math.Exp(math.Log(0.5) + rng.Float64()*(math.Log(20)-math.Log(0.5)))

		// Transit depth in ppm scales with (Rp/Rs)^2; 0.009158 converts
		// Earth radii to solar radii.
		ratio := prad * 0.009158 / srad
		depth := ratio * ratio * 1e6 * (1 + rng.NormFloat64()*0.1)

		duration := math.Cbrt(period) * srad * (3 + rng.NormFloat64()*0.5)
		dor := math.Pow(period, 2.0/3.0) * 10 / srad
		lum := srad * srad * math.Pow(steff/5778, 4)

		snr := depth * math.Sqrt(math.Abs(duration)) * math.Pow(10, -0.4*(kepmag-12))
		snr *= 1 + rng.NormFloat64()*0.2

		// Disposition probability: driven by the vetting score, crushed for
		// physically implausible candidates, boosted for Earth-like ones.
		probConfirmed := score * 0.8
		if prad > 25 || snr < 5 {
			probConfirmed *= 0.1
		}
		if prad < 2.5 && steff > 5000 && steff < 6500 {
			probConfirmed += 0.2
		}

		label := 0
		if rng.Float64() < probConfirmed {
			label = 1
		}

		vector := features.Vector{
			"koi_prad":      prad,
			"koi_depth":     depth,
			"koi_period":    period,
			"koi_srad":      srad,
			"koi_steff":     steff,
			"koi_smass":     smass,
			"koi_slogg":     slogg,
			"koi_lum":       lum,
			"koi_impact":    impact,
			"koi_duration":  duration,
			"koi_dor":       dor,
			"koi_model_snr": snr,
			"koi_kepmag":    kepmag,
			"koi_score":     score,
			"koi_qof":       qof,
		}

		catalog.X = append(catalog.X, vector.Slice(names))
		catalog.Labels = append(catalog.Labels, label)
		catalog.Radii = append(catalog.Radii, prad)
	}

	return catalog, nil
}

// betaSample draws from Beta(a, b) via two gamma variates. Both shape
// parameters must be >= 1.
func betaSample(rng *rand.Rand, a, b float64) float64 {
	x := gammaSample(rng, a)
	y := gammaSample(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gammaSample draws from Gamma(shape, 1) for shape >= 1 using the
// Marsaglia-Tsang squeeze method.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
