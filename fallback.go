package backdrop

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"math/rand"

	"github.com/gogpu/gg"
	"github.com/ojrac/opensimplex-go"
)

// FallbackSize is the edge length of every generated bitmap.
const FallbackSize = 128

const (
	starOuterRadius = 44.0
	starInnerRadius = 17.0
	starPoints      = 5

	smokeBlobs     = 30
	smokeSeed      = 0x5eed
	smokeGrainFreq = 0.07

	sparkleArm      = 56.0
	sparkleDiagonal = 30.0
)

// GenerateFallback draws the stand-in bitmap for a texture key. The output
// depends only on the key.
func GenerateFallback(key TextureKey) (*image.RGBA, error) {
	switch key {
	case TextureGlow:
		return renderFallback(drawGlow)
	case TextureStar:
		return renderFallback(drawStar)
	case TextureSmoke:
		img, err := renderFallback(drawSmoke)
		if err != nil {
			return nil, err
		}
		applyGrain(img, smokeSeed)
		return img, nil
	case TextureSparkle:
		return renderFallback(drawSparkle)
	}
	return renderFallback(drawGlow)
}

func renderFallback(paint func(dc *gg.Context) error) (*image.RGBA, error) {
	dc := gg.NewContext(FallbackSize, FallbackSize)
	defer dc.Close()
	dc.Clear()
	if err := paint(dc); err != nil {
		return nil, fmt.Errorf("drawing fallback: %w", err)
	}
	img := dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

func fallbackCenter() float64 { return FallbackSize / 2.0 }

func drawGlow(dc *gg.Context) error {
	c := fallbackCenter()
	brush := gg.NewRadialGradientBrush(c, c, 0, c).
		AddColorStop(0, gg.RGBA2(1, 1, 1, 1)).
		AddColorStop(0.2, gg.RGBA2(1, 1, 1, 0.8)).
		AddColorStop(0.5, gg.RGBA2(1, 1, 1, 0.3)).
		AddColorStop(1, gg.RGBA2(1, 1, 1, 0))
	dc.SetFillBrush(brush)
	dc.DrawRectangle(0, 0, FallbackSize, FallbackSize)
	return dc.Fill()
}

func drawStar(dc *gg.Context) error {
	c := fallbackCenter()

	// Halo first so the star body sits on top of its own glow.
	halo := gg.NewRadialGradientBrush(c, c, 0, starOuterRadius+12).
		AddColorStop(0, gg.RGBA2(1, 1, 1, 0.5)).
		AddColorStop(0.5, gg.RGBA2(1, 1, 1, 0.15)).
		AddColorStop(1, gg.RGBA2(1, 1, 1, 0))
	dc.SetFillBrush(halo)
	dc.DrawCircle(c, c, starOuterRadius+12)
	if err := dc.Fill(); err != nil {
		return err
	}

	step := math.Pi / starPoints
	dc.Push()
	dc.Translate(c, c)
	dc.MoveTo(0, -starOuterRadius)
	for i := 0; i < starPoints; i++ {
		dc.Rotate(step)
		dc.LineTo(0, -starInnerRadius)
		dc.Rotate(step)
		dc.LineTo(0, -starOuterRadius)
	}
	dc.ClosePath()
	dc.Pop()
	dc.SetRGBA(1, 1, 1, 1)
	return dc.Fill()
}

func drawSmoke(dc *gg.Context) error {
	c := fallbackCenter()
	base := gg.NewRadialGradientBrush(c, c, 0, c).
		AddColorStop(0, gg.RGBA2(1, 1, 1, 0.55)).
		AddColorStop(0.6, gg.RGBA2(1, 1, 1, 0.2)).
		AddColorStop(1, gg.RGBA2(1, 1, 1, 0))
	dc.SetFillBrush(base)
	dc.DrawRectangle(0, 0, FallbackSize, FallbackSize)
	if err := dc.Fill(); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(smokeSeed))
	dc.PushLayer(gg.BlendOverlay, 1)
	for i := 0; i < smokeBlobs; i++ {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * 36
		r := 10 + rng.Float64()*18
		x := c + math.Cos(angle)*dist
		y := c + math.Sin(angle)*dist
		blob := gg.NewRadialGradientBrush(x, y, 0, r).
			AddColorStop(0, gg.RGBA2(1, 1, 1, 0.3+rng.Float64()*0.2)).
			AddColorStop(1, gg.RGBA2(1, 1, 1, 0))
		dc.SetFillBrush(blob)
		dc.DrawCircle(x, y, r)
		if err := dc.Fill(); err != nil {
			dc.PopLayer()
			return err
		}
	}
	dc.PopLayer()
	return nil
}

// applyGrain modulates the bitmap with simplex noise. Pixels are
// premultiplied, so every channel is scaled together.
func applyGrain(img *image.RGBA, seed int64) {
	noise := opensimplex.NewNormalized(seed)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			k := 0.7 + 0.3*noise.Eval2(float64(x)*smokeGrainFreq, float64(y)*smokeGrainFreq)
			i := img.PixOffset(x, y)
			for ch := 0; ch < 4; ch++ {
				img.Pix[i+ch] = uint8(float64(img.Pix[i+ch]) * k)
			}
		}
	}
}

func drawSparkle(dc *gg.Context) error {
	c := fallbackCenter()
	dc.SetLineCap(gg.LineCapRound)

	dc.SetRGBA(1, 1, 1, 0.95)
	dc.SetLineWidth(4)
	dc.DrawLine(c-sparkleArm, c, c+sparkleArm, c)
	if err := dc.Stroke(); err != nil {
		return err
	}
	dc.DrawLine(c, c-sparkleArm, c, c+sparkleArm)
	if err := dc.Stroke(); err != nil {
		return err
	}

	dc.SetRGBA(1, 1, 1, 0.7)
	dc.SetLineWidth(2.5)
	dc.DrawLine(c-sparkleDiagonal, c-sparkleDiagonal, c+sparkleDiagonal, c+sparkleDiagonal)
	if err := dc.Stroke(); err != nil {
		return err
	}
	dc.DrawLine(c-sparkleDiagonal, c+sparkleDiagonal, c+sparkleDiagonal, c-sparkleDiagonal)
	if err := dc.Stroke(); err != nil {
		return err
	}

	highlight := gg.NewRadialGradientBrush(c, c, 0, 16).
		AddColorStop(0, gg.RGBA2(1, 1, 1, 1)).
		AddColorStop(1, gg.RGBA2(1, 1, 1, 0))
	dc.SetFillBrush(highlight)
	dc.DrawCircle(c, c, 16)
	return dc.Fill()
}
