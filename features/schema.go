// Package features defines the KOI feature schema and input validation.
package features

// Definition describes a single input feature: its physical meaning, legal
// range, and the typical value substituted when a caller omits it.
type Definition struct {
	Key         string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Typical     float64 `json:"typical"`
	Required    bool    `json:"required"`
}

// definitions holds the schema in canonical order. The order is shared by the
// validator, the trainer, and the model registry; changing it invalidates
// every saved pipeline artifact.
var definitions = []Definition{
	{
		Key:         "koi_prad",
		DisplayName: "Planetary Radius",
		Description: "Radius of the planet in Earth radii",
		Unit:        "Earth radii",
		Min:         0.1,
		Max:         30,
		Typical:     2.0,
		Required:    true,
	},
	{
		Key:         "koi_depth",
		DisplayName: "Transit Depth",
		Description: "Depth of the transit in parts per million (ppm)",
		Unit:        "ppm",
		Min:         0,
		Max:         10000,
		Typical:     100,
	},
	{
		Key:         "koi_period",
		DisplayName: "Orbital Period",
		Description: "Time between successive transits",
		Unit:        "days",
		Min:         0.1,
		Max:         1000,
		Typical:     50,
	},
	{
		Key:         "koi_srad",
		DisplayName: "Stellar Radius",
		Description: "Radius of the host star in solar radii",
		Unit:        "Solar radii",
		Min:         0.1,
		Max:         10,
		Typical:     1.0,
	},
	{
		Key:         "koi_steff",
		DisplayName: "Stellar Effective Temperature",
		Description: "Effective temperature of the host star",
		Unit:        "Kelvin",
		Min:         2500,
		Max:         10000,
		Typical:     5778,
	},
	{
		Key:         "koi_smass",
		DisplayName: "Stellar Mass",
		Description: "Mass of the host star in solar masses",
		Unit:        "Solar masses",
		Min:         0.1,
		Max:         5,
		Typical:     1.0,
	},
	{
		Key:         "koi_slogg",
		DisplayName: "Stellar Surface Gravity",
		Description: "Surface gravity of the host star (log g)",
		Unit:        "log(g)",
		Min:         1,
		Max:         5,
		Typical:     4.5,
	},
	{
		Key:         "koi_lum",
		DisplayName: "Stellar Luminosity",
		Description: "Luminosity of the host star (log solar)",
		Unit:        "log(L)",
		Min:         -3,
		Max:         5,
		Typical:     0,
	},
	{
		Key:         "koi_impact",
		DisplayName: "Impact Parameter",
		Description: "Impact parameter of the transit (b)",
		Unit:        "",
		Min:         0,
		Max:         2,
		Typical:     0.5,
	},
	{
		Key:         "koi_duration",
		DisplayName: "Transit Duration",
		Description: "Duration of the transit",
		Unit:        "hours",
		Min:         0.1,
		Max:         50,
		Typical:     3,
	},
	{
		Key:         "koi_dor",
		DisplayName: "Planet-Star Distance Ratio",
		Description: "Ratio of orbital semi-major axis to stellar radius (a/R*)",
		Unit:        "",
		Min:         1,
		Max:         200,
		Typical:     20,
	},
	{
		Key:         "koi_model_snr",
		DisplayName: "Model Signal-to-Noise Ratio",
		Description: "Signal-to-noise ratio of the transit model",
		Unit:        "",
		Min:         0,
		Max:         500,
		Typical:     20,
	},
	{
		Key:         "koi_kepmag",
		DisplayName: "Kepler Magnitude",
		Description: "Kepler magnitude of the target",
		Unit:        "mag",
		Min:         5,
		Max:         20,
		Typical:     14,
	},
	{
		Key:         "koi_score",
		DisplayName: "Disposition Score",
		Description: "Score for the disposition (probability of being a planet)",
		Unit:        "",
		Min:         0,
		Max:         1,
		Typical:     0.5,
	},
	{
		Key:         "koi_qof",
		DisplayName: "Quality Flag",
		Description: "Quality flag for the KOI",
		Unit:        "",
		Min:         0,
		Max:         1,
		Typical:     0.9,
	},
}

var definitionIndex = buildIndex()

func buildIndex() map[string]*Definition {
	index := make(map[string]*Definition, len(definitions))
	for i := range definitions {
		index[definitions[i].Key] = &definitions[i]
	}
	return index
}

// Definitions returns the schema in canonical order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for a feature key.
func Lookup(key string) (Definition, bool) {
	def, ok := definitionIndex[key]
	if !ok {
		return Definition{}, false
	}
	return *def, true
}

// Names returns the feature keys in canonical order.
func Names() []string {
	names := make([]string, len(definitions))
	for i, def := range definitions {
		names[i] = def.Key
	}
	return names
}

// Defaults returns a vector holding every feature's typical value.
func Defaults() Vector {
	vector := make(Vector, len(definitions))
	for _, def := range definitions {
		vector[def.Key] = def.Typical
	}
	return vector
}
