package backdrop

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

type PerformanceTier int

const (
	TierHigh PerformanceTier = iota
	TierMedium
	TierLow
)

func (t PerformanceTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier accepts "high", "medium" or "low". "auto" and "" return ok=false
// so the caller falls back to DetectTier.
func ParseTier(s string) (PerformanceTier, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return TierMedium, false, nil
	case "high":
		return TierHigh, true, nil
	case "medium", "normal":
		return TierMedium, true, nil
	case "low":
		return TierLow, true, nil
	}
	return TierMedium, false, fmt.Errorf("unknown tier %q", s)
}

// TierSettings is the fixed budget attached to a tier.
type TierSettings struct {
	Tier PerformanceTier
	// Counts holds the base particle count per preset name.
	Counts map[string]int
	// UpdateFraction is the per-frame probability that a particle is recomputed.
	UpdateFraction float64
	TargetFPS      int
	Antialias      bool
	// GroupSkipChance is the per-frame probability that a whole group is left as is.
	GroupSkipChance float64
}

// Count returns the base count for a preset, zero for unknown names.
func (s TierSettings) Count(preset string) int {
	return s.Counts[preset]
}

var tierTable = [...]TierSettings{
	TierHigh: {
		Tier:           TierHigh,
		Counts:         map[string]int{PresetCore: 2500, PresetStars: 1500, PresetFog: 800, PresetSparkles: 300},
		UpdateFraction: 1.0,
		TargetFPS:      60,
		Antialias:      true,
	},
	TierMedium: {
		Tier:           TierMedium,
		Counts:         map[string]int{PresetCore: 1500, PresetStars: 900, PresetFog: 500, PresetSparkles: 200},
		UpdateFraction: 0.7,
		TargetFPS:      45,
		Antialias:      true,
	},
	TierLow: {
		Tier:            TierLow,
		Counts:          map[string]int{PresetCore: 700, PresetStars: 400, PresetFog: 250, PresetSparkles: 100},
		UpdateFraction:  0.4,
		TargetFPS:       30,
		Antialias:       false,
		GroupSkipChance: 0.15,
	},
}

// Settings returns a copy of the tier's settings. The counts map is shared
// and must not be modified.
func (t PerformanceTier) Settings() TierSettings {
	if t < TierHigh || t > TierLow {
		return tierTable[TierMedium]
	}
	return tierTable[t]
}

// DeviceInfo is what the host can tell about the machine it runs on.
type DeviceInfo struct {
	// Platform is a user-agent style description of the host.
	Platform     string
	LogicalCores int
	// GPURenderer is the adapter description, empty when unknown.
	GPURenderer string
	// HasGraphics reports whether a graphics context could be obtained at all.
	HasGraphics bool
}

// ProbeHost fills the CPU side of DeviceInfo from the Go runtime.
func ProbeHost(gpuRenderer string, hasGraphics bool) DeviceInfo {
	return DeviceInfo{
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		LogicalCores: runtime.NumCPU(),
		GPURenderer:  gpuRenderer,
		HasGraphics:  hasGraphics,
	}
}

var (
	mobilePattern   = regexp.MustCompile(`(?i)android|iphone|ipad|ipod|mobile|blackberry|opera mini|iemobile|ios/`)
	highEndPattern  = regexp.MustCompile(`(?i)rtx|gtx\s*1[0-9]{3}|gtx\s*16[0-9]{2}|radeon\s*rx\s*[67][0-9]{3}|radeon\s*pro|quadro|apple\s*m[1-9]\s*(pro|max|ultra)|apple\s*m[2-9]|arc\s*a7`)
	midRangePattern = regexp.MustCompile(`(?i)gtx|radeon\s*rx|radeon|iris\s*xe|iris|apple\s*m1|apple\s*gpu|arc|adreno\s*7|mali-g7`)
)

// DetectTier classifies a device. It has no side effects; anything
// inconclusive yields TierMedium.
func DetectTier(info DeviceInfo) PerformanceTier {
	if mobilePattern.MatchString(info.Platform) {
		return TierLow
	}
	if info.LogicalCores > 0 && info.LogicalCores <= 4 {
		return TierLow
	}
	if !info.HasGraphics {
		return TierLow
	}
	if highEndPattern.MatchString(info.GPURenderer) {
		return TierHigh
	}
	if midRangePattern.MatchString(info.GPURenderer) {
		return TierMedium
	}
	return TierMedium
}
