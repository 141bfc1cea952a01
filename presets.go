package backdrop

const (
	PresetCore     = "core"
	PresetStars    = "stars"
	PresetFog      = "fog"
	PresetSparkles = "sparkles"
)

// Preset describes one visual category of particles.
type Preset struct {
	Name string
	// Size is the base point size in world units.
	Size float64
	// Range is the radius of the sphere particles are placed in.
	Range          float64
	BaseHue        float64
	MinOpacity     float64
	MaxOpacity     float64
	RotationSpeed  float64
	WaveSpeed      float64
	WaveAmplitude  float64
	Texture        TextureKey
	PulseFrequency float64
	PulseAmplitude float64
}

var presetTable = [...]Preset{
	{
		Name:           PresetCore,
		Size:           0.35,
		Range:          8,
		BaseHue:        0.6,
		MinOpacity:     0.4,
		MaxOpacity:     0.9,
		RotationSpeed:  0.02,
		WaveSpeed:      0.6,
		WaveAmplitude:  0.25,
		Texture:        TextureGlow,
		PulseFrequency: 1.2,
		PulseAmplitude: 0.15,
	},
	{
		Name:           PresetStars,
		Size:           0.18,
		Range:          25,
		BaseHue:        0.12,
		MinOpacity:     0.5,
		MaxOpacity:     1.0,
		RotationSpeed:  0.005,
		WaveSpeed:      0.2,
		WaveAmplitude:  0.08,
		Texture:        TextureStar,
		PulseFrequency: 2.5,
		PulseAmplitude: 0.3,
	},
	{
		Name:           PresetFog,
		Size:           2.4,
		Range:          15,
		BaseHue:        0.7,
		MinOpacity:     0.05,
		MaxOpacity:     0.2,
		RotationSpeed:  0.01,
		WaveSpeed:      0.15,
		WaveAmplitude:  0.6,
		Texture:        TextureSmoke,
		PulseFrequency: 0.4,
		PulseAmplitude: 0.1,
	},
	{
		Name:           PresetSparkles,
		Size:           0.28,
		Range:          12,
		BaseHue:        0.85,
		MinOpacity:     0.6,
		MaxOpacity:     1.0,
		RotationSpeed:  0.03,
		WaveSpeed:      1.2,
		WaveAmplitude:  0.35,
		Texture:        TextureSparkle,
		PulseFrequency: 4.0,
		PulseAmplitude: 0.45,
	},
}

// Presets returns the four presets in draw order.
func Presets() []Preset {
	out := make([]Preset, len(presetTable))
	copy(out, presetTable[:])
	return out
}

// PresetByName looks up a preset.
func PresetByName(name string) (Preset, bool) {
	for _, p := range presetTable {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// TextureKeys returns the distinct texture keys the presets need.
func TextureKeys() []TextureKey {
	keys := make([]TextureKey, 0, len(presetTable))
	seen := make(map[TextureKey]bool, len(presetTable))
	for _, p := range presetTable {
		if !seen[p.Texture] {
			seen[p.Texture] = true
			keys = append(keys, p.Texture)
		}
	}
	return keys
}
