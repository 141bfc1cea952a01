package backdrop

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueJitter       = 0.05
	minSaturation   = 0.6
	maxSaturation   = 0.9
	minLightness    = 0.5
	maxLightness    = 0.75
	minScale        = 0.5
	maxScale        = 1.5
	minSpeed        = 0.5
	maxSpeed        = 1.5
	groupSaturation = 0.75
)

// ParticleGroup holds one preset's particles as parallel arrays indexed by
// particle. The layout keeps the per-frame loop over flat slices.
type ParticleGroup struct {
	ID      string
	Name    string
	Index   int
	Count   int
	Size    float64
	Texture *Texture

	// Uploaded to the renderer, 3 floats per particle.
	Positions []float32
	Colors    []float32

	Opacity []float32
	Scale   []float32
	Speed   []float32
	Phase   []float32
	// initial is the rest position of each particle. Written by BuildGroup only.
	initial []float32

	Elapsed        float64
	RotationSpeed  float64
	WaveSpeed      float64
	WaveAmplitude  float64
	PulseFrequency float64
	PulseAmplitude float64

	BaseHue         float64
	BaseOpacity     float64
	MaterialOpacity float64
	// Rotation is the group's Euler rotation in radians.
	Rotation mgl32.Vec3

	PositionsDirty bool
	ColorsDirty    bool

	colorCursor int
	disposed    bool
}

// BuildGroup allocates and seeds a group for a preset. A zero count gives
// an empty group.
func BuildGroup(p Preset, index int, settings TierSettings, mods Modifiers, tex *Texture, rng *rand.Rand) *ParticleGroup {
	density := mods.Density
	if density <= 0 {
		density = 1
	}
	waveScale := orOne(mods.WaveScale)
	pulseScale := orOne(mods.PulseScale)

	n := int(math.Floor(float64(settings.Count(p.Name)) * density))
	if n < 0 {
		n = 0
	}

	baseHue := wrapUnit(p.BaseHue + mods.Colors.BaseHue - DefaultBaseHue)
	if mods.Colors == (ColorScheme{}) {
		baseHue = p.BaseHue
	}

	g := &ParticleGroup{
		ID:             uuid.NewString(),
		Name:           p.Name,
		Index:          index,
		Count:          n,
		Size:           p.Size,
		Texture:        tex,
		Positions:      make([]float32, 3*n),
		Colors:         make([]float32, 3*n),
		Opacity:        make([]float32, n),
		Scale:          make([]float32, n),
		Speed:          make([]float32, n),
		Phase:          make([]float32, n),
		initial:        make([]float32, 3*n),
		RotationSpeed:  p.RotationSpeed * waveScale,
		WaveSpeed:      p.WaveSpeed,
		WaveAmplitude:  p.WaveAmplitude * waveScale,
		PulseFrequency: p.PulseFrequency,
		PulseAmplitude: p.PulseAmplitude * pulseScale,
		BaseHue:        baseHue,
		BaseOpacity:    (p.MinOpacity + p.MaxOpacity) / 2,
		PositionsDirty: true,
		ColorsDirty:    true,
	}
	g.MaterialOpacity = g.BaseOpacity

	for i := 0; i < n; i++ {
		x, y, z := sampleSphere(rng, p.Range)
		g.Positions[3*i] = float32(x)
		g.Positions[3*i+1] = float32(y)
		g.Positions[3*i+2] = float32(z)

		g.Opacity[i] = float32(uniform(rng, p.MinOpacity, p.MaxOpacity))
		g.Scale[i] = float32(uniform(rng, minScale, maxScale))
		g.Speed[i] = float32(uniform(rng, minSpeed, maxSpeed))
		g.Phase[i] = float32(rng.Float64() * 2 * math.Pi)

		h := baseHue + uniform(rng, -hueJitter, hueJitter)
		s := uniform(rng, minSaturation, maxSaturation)
		l := uniform(rng, minLightness, maxLightness)
		g.setColor(i, h, s, l)
	}
	copy(g.initial, g.Positions)
	return g
}

// BuildGroups builds one group per preset in preset order.
func BuildGroups(presets []Preset, settings TierSettings, mods Modifiers, textures TextureSet, rng *rand.Rand) []*ParticleGroup {
	groups := make([]*ParticleGroup, 0, len(presets))
	for i, p := range presets {
		groups = append(groups, BuildGroup(p, i, settings, mods, textures.Get(p.Texture), rng))
	}
	return groups
}

// InitialPosition returns the rest position of particle i.
func (g *ParticleGroup) InitialPosition(i int) mgl32.Vec3 {
	return mgl32.Vec3{g.initial[3*i], g.initial[3*i+1], g.initial[3*i+2]}
}

// Position returns the current position of particle i.
func (g *ParticleGroup) Position(i int) mgl32.Vec3 {
	return mgl32.Vec3{g.Positions[3*i], g.Positions[3*i+1], g.Positions[3*i+2]}
}

// Model is the group transform.
func (g *ParticleGroup) Model() mgl32.Mat4 {
	return mgl32.HomogRotate3DX(g.Rotation.X()).
		Mul4(mgl32.HomogRotate3DY(g.Rotation.Y())).
		Mul4(mgl32.HomogRotate3DZ(g.Rotation.Z()))
}

func (g *ParticleGroup) Disposed() bool { return g.disposed }

// Dispose drops every buffer. Safe to call more than once.
func (g *ParticleGroup) Dispose() {
	if g == nil || g.disposed {
		return
	}
	g.disposed = true
	g.Positions = nil
	g.Colors = nil
	g.Opacity = nil
	g.Scale = nil
	g.Speed = nil
	g.Phase = nil
	g.initial = nil
	g.Texture = nil
	g.Count = 0
}

func (g *ParticleGroup) setColor(i int, h, s, l float64) {
	c := colorful.Hsl(wrapUnit(h)*360, clamp01(s), clamp01(l)).Clamped()
	g.Colors[3*i] = float32(c.R)
	g.Colors[3*i+1] = float32(c.G)
	g.Colors[3*i+2] = float32(c.B)
}

// sampleSphere returns a point uniformly distributed inside a sphere.
func sampleSphere(rng *rand.Rand, radius float64) (float64, float64, float64) {
	r := radius * math.Cbrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	phi := math.Acos(2*rng.Float64() - 1)
	sinPhi := math.Sin(phi)
	return r * sinPhi * math.Cos(theta), r * sinPhi * math.Sin(theta), r * math.Cos(phi)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func wrapUnit(v float64) float64 {
	v = math.Mod(v, 1)
	if v < 0 {
		v++
	}
	return v
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
