package backdrop

import (
	"math"
	"math/rand"
)

// Tuning constants. The values are cosmetic.
const (
	GlobalMotionSpeed     = 0.15
	GlobalMotionAmplitude = 0.4
	ColorPulseSpeed       = 0.5
	ColorPulseAmplitude   = 0.08

	FocalRetargetInterval = 4.0
	FocalFollowRate       = 0.35
	// FocalSpan maps the unit focal cube into world space.
	FocalSpan    = 6.0
	FocalPull    = 0.05
	FocalFalloff = 0.1

	RecolorChance = 0.3
	// RecolorStride selects every n-th particle for a recolour pass.
	RecolorStride = 10

	materialOpacityDepth = 0.15
	materialOpacityRate  = 0.5
	tiltFactor           = 0.3
)

// GlobalMotion is a slow drift shared by the whole scene.
type GlobalMotion struct {
	Time      float64
	Speed     float64
	Amplitude float64
}

func (m *GlobalMotion) Advance(dt float64) { m.Time += dt * m.Speed }

func (m *GlobalMotion) Offset() (float64, float64, float64) {
	return math.Sin(m.Time*0.7) * m.Amplitude,
		math.Cos(m.Time*0.5) * m.Amplitude,
		math.Sin(m.Time*0.3) * m.Amplitude * 0.5
}

// ColorPulse is a slow oscillation applied to particle hue.
type ColorPulse struct {
	Time      float64
	Speed     float64
	Amplitude float64
}

func (p *ColorPulse) Advance(dt float64) { p.Time += dt * p.Speed }

func (p *ColorPulse) Value() float64 { return math.Sin(p.Time) * p.Amplitude }

// ColorShift walks the hue through ColorStops evenly spaced stops over
// HueRange, easing between stops.
type ColorShift struct {
	Time   float64
	Scheme ColorScheme
}

func (s *ColorShift) Advance(dt float64) { s.Time += dt * s.Scheme.TransitionSpeed }

// Offset is the hue offset in [0, HueRange).
func (s *ColorShift) Offset() float64 {
	stops := s.Scheme.ColorStops
	if stops <= 0 {
		stops = DefaultColorStops
	}
	phase := wrapUnit(s.Time) * float64(stops)
	i := math.Floor(phase)
	f := phase - i
	f = f * f * (3 - 2*f)
	return s.Scheme.HueRange * (i + f) / float64(stops)
}

// FocalPoint is the single drifting attractor. Targets always lie in the
// unit cube [-1,1]^3.
type FocalPoint struct {
	X, Y, Z                   float64
	TargetX, TargetY, TargetZ float64
	ChangeTimer               float64
}

func (f *FocalPoint) Update(dt float64, rng *rand.Rand) {
	f.ChangeTimer += dt
	if f.ChangeTimer >= FocalRetargetInterval {
		f.ChangeTimer = 0
		f.TargetX = rng.Float64()*2 - 1
		f.TargetY = rng.Float64()*2 - 1
		f.TargetZ = rng.Float64()*2 - 1
	}
	k := math.Min(1, dt*FocalFollowRate)
	f.X += (f.TargetX - f.X) * k
	f.Y += (f.TargetY - f.Y) * k
	f.Z += (f.TargetZ - f.Z) * k
}

// World returns the focal point in scene units.
func (f *FocalPoint) World() (float64, float64, float64) {
	return f.X * FocalSpan, f.Y * FocalSpan, f.Z * FocalSpan
}

// Oscillators is the shared per-frame state the simulator reads.
type Oscillators struct {
	Focal  FocalPoint
	Global GlobalMotion
	Pulse  ColorPulse
	Shift  ColorShift
}

func NewOscillators(scheme ColorScheme) *Oscillators {
	return &Oscillators{
		Global: GlobalMotion{Speed: GlobalMotionSpeed, Amplitude: GlobalMotionAmplitude},
		Pulse:  ColorPulse{Speed: ColorPulseSpeed, Amplitude: ColorPulseAmplitude},
		Shift:  ColorShift{Scheme: scheme},
	}
}

// Advance moves every oscillator by one frame. Called before any group is
// simulated for that frame.
func (o *Oscillators) Advance(dt float64, rng *rand.Rand) {
	o.Global.Advance(dt)
	o.Pulse.Advance(dt)
	o.Shift.Advance(dt)
	o.Focal.Update(dt, rng)
}

// Simulator advances particle groups. It owns the random source that picks
// which particles update in a frame.
type Simulator struct {
	rng *rand.Rand
}

func NewSimulator(rng *rand.Rand) *Simulator {
	return &Simulator{rng: rng}
}

// Advance moves g forward by dt seconds. Positions are always derived from
// the rest positions and never from the previous frame.
func (s *Simulator) Advance(g *ParticleGroup, dt float64, osc *Oscillators, updateFraction float64) {
	if g == nil || g.disposed {
		return
	}
	g.Elapsed += dt
	t := g.Elapsed
	pulseFactor := 1 + math.Sin(t*g.PulseFrequency)*g.PulseAmplitude

	if g.Count > 0 && s.rng.Float64() < RecolorChance {
		s.recolor(g, osc)
	}

	gx, gy, gz := osc.Global.Offset()
	fx, fy, fz := osc.Focal.World()
	for i := 0; i < g.Count; i++ {
		if updateFraction < 1 && s.rng.Float64() >= updateFraction {
			continue
		}
		j := 3 * i
		phase := float64(g.Phase[i])
		wt := t * g.WaveSpeed * float64(g.Speed[i])
		amp := g.WaveAmplitude * float64(g.Scale[i]) * pulseFactor

		x := float64(g.initial[j]) + math.Sin(wt+phase)*amp + gx
		y := float64(g.initial[j+1]) + math.Cos(wt*0.8+phase*1.3)*amp + gy
		z := float64(g.initial[j+2]) + math.Sin(wt*0.6+phase*0.7)*amp + gz

		dx, dy, dz := x-fx, y-fy, z-fz
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)
		pull := FocalPull / (1 + d*FocalFalloff)

		g.Positions[j] = float32(x - dx*pull)
		g.Positions[j+1] = float32(y - dy*pull)
		g.Positions[j+2] = float32(z - dz*pull)
	}
	g.PositionsDirty = true

	g.MaterialOpacity = g.BaseOpacity * (1 - materialOpacityDepth + materialOpacityDepth*math.Sin(t*materialOpacityRate+float64(g.Index)))

	sign := 1.0
	if g.Index%2 == 1 {
		sign = -1
	}
	g.Rotation[1] += float32(g.RotationSpeed * dt * sign)
	g.Rotation[0] += float32(g.RotationSpeed * tiltFactor * dt * sign)
}

// recolor updates every RecolorStride-th particle, starting from a cursor
// that moves on each pass.
func (s *Simulator) recolor(g *ParticleGroup, osc *Oscillators) {
	shift := osc.Shift.Offset() + osc.Pulse.Value()
	start := g.colorCursor % RecolorStride
	for i := start; i < g.Count; i += RecolorStride {
		jitter := math.Sin(float64(g.Phase[i])) * hueJitter
		light := minLightness + (maxLightness-minLightness)*(float64(g.Scale[i])-minScale)/(maxScale-minScale)
		g.setColor(i, g.BaseHue+shift+jitter, groupSaturation, light)
	}
	g.colorCursor++
	g.ColorsDirty = true
}
