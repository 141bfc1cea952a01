package backdrop

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alphaAt(t *testing.T, key TextureKey, x, y int) uint8 {
	t.Helper()
	img, err := GenerateFallback(key)
	require.NoError(t, err)
	return img.RGBAAt(x, y).A
}

func TestGenerateFallback_SizeAndDeterminism(t *testing.T) {
	for _, key := range TextureKeys() {
		a, err := GenerateFallback(key)
		require.NoError(t, err, key)
		b, err := GenerateFallback(key)
		require.NoError(t, err, key)

		assert.Equal(t, FallbackSize, a.Bounds().Dx(), key)
		assert.Equal(t, FallbackSize, a.Bounds().Dy(), key)
		assert.Equal(t, a.Pix, b.Pix, "fallback %s is not deterministic", key)
	}
}

func TestGenerateFallback_UnknownKeyUsesGlow(t *testing.T) {
	glow, err := GenerateFallback(TextureGlow)
	require.NoError(t, err)
	other, err := GenerateFallback(TextureKey("nebula"))
	require.NoError(t, err)
	assert.Equal(t, glow.Pix, other.Pix)
}

func TestGenerateFallback_Glow(t *testing.T) {
	img, err := GenerateFallback(TextureGlow)
	require.NoError(t, err)

	center := img.RGBAAt(64, 64).A
	assert.Greater(t, center, uint8(230))
	assert.Zero(t, img.RGBAAt(0, 0).A, "corners lie outside the gradient")
	assert.Zero(t, img.RGBAAt(127, 127).A)

	// Radially symmetric and decreasing outward.
	assert.InDelta(t, float64(img.RGBAAt(84, 64).A), float64(img.RGBAAt(43, 64).A), 12)
	assert.InDelta(t, float64(img.RGBAAt(64, 84).A), float64(img.RGBAAt(64, 43).A), 12)
	assert.Greater(t, img.RGBAAt(74, 64).A, img.RGBAAt(104, 64).A)
}

func TestGenerateFallback_Star(t *testing.T) {
	tip := alphaAt(t, TextureStar, 64, 30)
	gap := alphaAt(t, TextureStar, 87, 31)
	assert.Greater(t, tip, uint8(200), "inside the upper spike")
	assert.Less(t, gap, uint8(120), "between two spikes only the halo shows")
	assert.Zero(t, alphaAt(t, TextureStar, 2, 2))
}

// angularVariation is the mean standard deviation of alpha across pixels
// sharing a distance from the centre, over half-pixel rings between lo and hi.
// A radial gradient scores close to zero.
func angularVariation(img *image.RGBA, lo, hi float64) float64 {
	const ring = 0.5
	c := float64(FallbackSize) / 2
	n := int((hi - lo) / ring)
	sum := make([]float64, n)
	sq := make([]float64, n)
	cnt := make([]float64, n)
	for y := 0; y < FallbackSize; y++ {
		for x := 0; x < FallbackSize; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			if d < lo || d >= hi {
				continue
			}
			i := int((d - lo) / ring)
			a := float64(img.RGBAAt(x, y).A)
			sum[i] += a
			sq[i] += a * a
			cnt[i]++
		}
	}
	total, rings := 0.0, 0
	for i := range cnt {
		if cnt[i] < 2 {
			continue
		}
		mean := sum[i] / cnt[i]
		total += math.Sqrt(math.Max(0, sq[i]/cnt[i]-mean*mean))
		rings++
	}
	return total / float64(rings)
}

func TestGenerateFallback_Smoke(t *testing.T) {
	img, err := GenerateFallback(TextureSmoke)
	require.NoError(t, err)
	assert.Greater(t, img.RGBAAt(64, 64).A, uint8(0))
	assert.Zero(t, img.RGBAAt(0, 0).A)
	assert.Zero(t, img.RGBAAt(127, 0).A)

	// Blobs and grain make smoke patchy where a plain gradient is uniform.
	glow, err := GenerateFallback(TextureGlow)
	require.NoError(t, err)
	glowVar := angularVariation(glow, 8, 40)
	smokeVar := angularVariation(img, 8, 40)
	assert.Less(t, glowVar, 3.0)
	assert.Greater(t, smokeVar, 2*glowVar+3)
}

func TestGenerateFallback_KeysAreDistinct(t *testing.T) {
	keys := TextureKeys()
	images := make(map[TextureKey]*image.RGBA, len(keys))
	for _, key := range keys {
		img, err := GenerateFallback(key)
		require.NoError(t, err, key)
		images[key] = img
	}
	for i, a := range keys {
		for _, b := range keys[i+1:] {
			assert.NotEqual(t, images[a].Pix, images[b].Pix, "%s and %s render the same bitmap", a, b)
		}
	}
}

func TestGenerateFallback_Sparkle(t *testing.T) {
	img, err := GenerateFallback(TextureSparkle)
	require.NoError(t, err)
	assert.Greater(t, img.RGBAAt(114, 64).A, uint8(200), "horizontal arm")
	assert.Greater(t, img.RGBAAt(64, 14).A, uint8(200), "vertical arm")
	assert.Greater(t, img.RGBAAt(89, 89).A, uint8(120), "diagonal ray")
	assert.Less(t, img.RGBAAt(114, 84).A, uint8(10), "empty quadrant")
}
