package gpu

import (
	"testing"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/backdrop"
	"github.com/stretchr/testify/assert"
)

type otherSurface struct{}

func (otherSurface) Size() (int, int) { return 10, 10 }

func TestBackend_RejectsForeignSurfaces(t *testing.T) {
	b := NewBackend()
	assert.Equal(t, "gpu", b.Name())

	_, err := b.NewRenderer(otherSurface{}, backdrop.RendererOptions{})
	assert.ErrorContains(t, err, "unsupported surface")

	info := b.Probe(otherSurface{})
	assert.False(t, info.HasGraphics)
	assert.Equal(t, backdrop.TierLow, backdrop.DetectTier(info))
}

func TestWindowSurface_NilWindow(t *testing.T) {
	var ws *WindowSurface
	w, h := ws.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
	w, h = (&WindowSurface{}).Size()
	assert.Zero(t, w+h)
}

func TestPickAlphaMode(t *testing.T) {
	assert.Equal(t, wgpu.CompositeAlphaModePremultiplied,
		pickAlphaMode([]wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque, wgpu.CompositeAlphaModePremultiplied}))
	assert.Equal(t, wgpu.CompositeAlphaModeOpaque,
		pickAlphaMode([]wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque}))
	assert.Equal(t, wgpu.CompositeAlphaModeAuto, pickAlphaMode(nil))
}

func TestSamplerModes(t *testing.T) {
	assert.Equal(t, wgpu.AddressModeClampToEdge, addressMode(backdrop.WrapClamp))
	assert.Equal(t, wgpu.AddressModeRepeat, addressMode(backdrop.WrapRepeat))
	assert.Equal(t, wgpu.AddressModeMirrorRepeat, addressMode(backdrop.WrapMirror))
	assert.Equal(t, wgpu.FilterModeLinear, filterMode(backdrop.FilterLinear))
	assert.Equal(t, wgpu.FilterModeNearest, filterMode(backdrop.FilterNearest))
}

func TestParticleAttribLayout(t *testing.T) {
	assert.Equal(t, uintptr(8), unsafe.Sizeof(particleAttrib{}))
}
