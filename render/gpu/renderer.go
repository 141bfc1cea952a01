package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/backdrop"
	"github.com/gekko3d/backdrop/render/shaders"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const msaaSamples = 4

var errNotAttached = errors.New("renderer not attached")

// particleAttrib matches @location(2) in the particle shader.
type particleAttrib struct {
	Opacity float32
	Scale   float32
}

type spriteTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

// groupBuffers holds the device copies of one particle group.
type groupBuffers struct {
	group     *backdrop.ParticleGroup
	positions *wgpu.Buffer
	colors    *wgpu.Buffer
	attribs   *wgpu.Buffer
	uniform   *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

func (b *groupBuffers) release() {
	for _, buf := range []*wgpu.Buffer{b.positions, b.colors, b.attribs, b.uniform} {
		if buf != nil {
			buf.Release()
		}
	}
	if b.bindGroup != nil {
		b.bindGroup.Release()
	}
}

// Renderer draws every group as instanced additive sprites into a window.
type Renderer struct {
	window      *glfw.Window
	logger      backdrop.Logger
	sampleCount uint32

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	config   *wgpu.SurfaceConfiguration

	pipeline  *wgpu.RenderPipeline
	cameraBuf *wgpu.Buffer
	cameraBG  *wgpu.BindGroup

	msaaTexture *wgpu.Texture
	msaaView    *wgpu.TextureView

	textures map[backdrop.TextureKey]*spriteTexture
	groups   []*groupBuffers

	attached bool
	released bool
}

func newRenderer(ws *WindowSurface, power wgpu.PowerPreference, opts backdrop.RendererOptions) (_ *Renderer, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = backdrop.NewNopLogger()
	}
	r := &Renderer{
		window:      ws.Window,
		logger:      logger,
		sampleCount: 1,
		textures:    make(map[backdrop.TextureKey]*spriteTexture),
	}
	if opts.Antialias {
		r.sampleCount = msaaSamples
	}
	defer func() {
		if err != nil {
			r.Release()
		}
	}()

	r.instance = wgpu.CreateInstance(nil)
	r.surface = r.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(ws.Window))

	r.adapter, err = r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.surface,
		PowerPreference:   power,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backdrop.ErrNoGraphics, err)
	}
	r.device, err = r.adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "backdrop device"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backdrop.ErrNoGraphics, err)
	}
	r.queue = r.device.GetQueue()

	width, height := ws.Size()
	caps := r.surface.GetCapabilities(r.adapter)
	if len(caps.Formats) == 0 {
		return nil, fmt.Errorf("%w: surface reports no formats", backdrop.ErrNoGraphics)
	}
	r.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   pickAlphaMode(caps.AlphaModes),
	}

	if err = r.createPipeline(); err != nil {
		return nil, err
	}
	r.cameraBuf, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "camera uniform",
		Size:  shaders.CameraUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	r.cameraBG, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "camera",
		Layout: r.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.cameraBuf, Size: shaders.CameraUniformSize},
		},
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debugf("gpu renderer created: format %v, %d samples", r.config.Format, r.sampleCount)
	return r, nil
}

// pickAlphaMode prefers premultiplied composition so a transparent window
// shows the desktop behind the particles.
func pickAlphaMode(modes []wgpu.CompositeAlphaMode) wgpu.CompositeAlphaMode {
	for _, m := range modes {
		if m == wgpu.CompositeAlphaModePremultiplied {
			return m
		}
	}
	if len(modes) > 0 {
		return modes[0]
	}
	return wgpu.CompositeAlphaModeAuto
}

func (r *Renderer) createPipeline() error {
	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "particles",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticlesWGSL},
	})
	if err != nil {
		return fmt.Errorf("creating particle shader: %w", err)
	}
	defer module.Release()

	additive := wgpu.BlendComponent{
		Operation: wgpu.BlendOperationAdd,
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOne,
	}
	r.pipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "particles",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: 12,
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: shaders.SlotPositions},
					},
				},
				{
					ArrayStride: 12,
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: shaders.SlotColors},
					},
				},
				{
					ArrayStride: uint64(unsafe.Sizeof(particleAttrib{})),
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: shaders.SlotAttribs},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    r.config.Format,
				Blend:     &wgpu.BlendState{Color: additive, Alpha: additive},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleStrip,
			CullMode: wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: r.sampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("creating particle pipeline: %w", err)
	}
	return nil
}

func (r *Renderer) LoadTexture(tex *backdrop.Texture) error {
	if r.released {
		return backdrop.ErrDisposed
	}
	if tex == nil || tex.Image == nil {
		return errors.New("gpu renderer: empty texture")
	}
	w, h := tex.Size()
	extent := wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1}
	texture, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         string(tex.Key),
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("creating texture %s: %w", tex.Key, err)
	}
	err = r.queue.WriteTexture(texture.AsImageCopy(), tex.Image.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(tex.Image.Stride),
		RowsPerImage: uint32(h),
	}, &extent)
	if err != nil {
		texture.Release()
		return fmt.Errorf("uploading texture %s: %w", tex.Key, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return err
	}
	addr := addressMode(tex.Wrap)
	filter := filterMode(tex.Filter)
	sampler, err := r.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  addr,
		AddressModeV:  addr,
		AddressModeW:  addr,
		MinFilter:     filter,
		MagFilter:     filter,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		texture.Release()
		return err
	}

	if old := r.textures[tex.Key]; old != nil {
		old.release()
	}
	r.textures[tex.Key] = &spriteTexture{texture: texture, view: view, sampler: sampler}
	return nil
}

func (t *spriteTexture) release() {
	t.sampler.Release()
	t.view.Release()
	t.texture.Release()
}

func addressMode(mode backdrop.WrapMode) wgpu.AddressMode {
	switch mode {
	case backdrop.WrapRepeat:
		return wgpu.AddressModeRepeat
	case backdrop.WrapMirror:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeClampToEdge
	}
}

func filterMode(mode backdrop.FilterMode) wgpu.FilterMode {
	if mode == backdrop.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func (r *Renderer) AddGroup(g *backdrop.ParticleGroup) error {
	if r.released {
		return backdrop.ErrDisposed
	}
	if g.Texture == nil {
		return fmt.Errorf("group %s has no texture", g.Name)
	}
	sprite := r.textures[g.Texture.Key]
	if sprite == nil {
		return fmt.Errorf("group %s: texture %s was not loaded", g.Name, g.Texture.Key)
	}

	gb := &groupBuffers{group: g}
	var err error
	if gb.positions, err = r.createVertexBuffer(g.Name+" positions", wgpu.ToBytes(g.Positions)); err != nil {
		return err
	}
	if gb.colors, err = r.createVertexBuffer(g.Name+" colors", wgpu.ToBytes(g.Colors)); err != nil {
		gb.release()
		return err
	}
	attribs := make([]particleAttrib, g.Count)
	for i := range attribs {
		attribs[i] = particleAttrib{Opacity: g.Opacity[i], Scale: g.Scale[i]}
	}
	if gb.attribs, err = r.createVertexBuffer(g.Name+" attribs", wgpu.ToBytes(attribs)); err != nil {
		gb.release()
		return err
	}
	gb.uniform, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: g.Name + " uniform",
		Size:  shaders.GroupUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		gb.release()
		return err
	}
	gb.bindGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  g.Name,
		Layout: r.pipeline.GetBindGroupLayout(1),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: gb.uniform, Size: shaders.GroupUniformSize},
			{Binding: 1, TextureView: sprite.view},
			{Binding: 2, Sampler: sprite.sampler},
		},
	})
	if err != nil {
		gb.release()
		return err
	}

	g.PositionsDirty = false
	g.ColorsDirty = false
	r.groups = append(r.groups, gb)
	return nil
}

// createVertexBuffer uploads data, padding empty groups to a minimal size.
func (r *Renderer) createVertexBuffer(label string, data []byte) (*wgpu.Buffer, error) {
	if len(data) == 0 {
		data = make([]byte, 16)
	}
	return r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
}

func (r *Renderer) Attach() error {
	if r.released {
		return backdrop.ErrDisposed
	}
	r.surface.Configure(r.adapter, r.device, r.config)
	if err := r.createMSAATarget(); err != nil {
		return err
	}
	r.attached = true
	return nil
}

func (r *Renderer) createMSAATarget() error {
	if r.msaaView != nil {
		r.msaaView.Release()
		r.msaaView = nil
	}
	if r.msaaTexture != nil {
		r.msaaTexture.Release()
		r.msaaTexture = nil
	}
	if r.sampleCount <= 1 {
		return nil
	}
	var err error
	r.msaaTexture, err = r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "msaa target",
		Size:          wgpu.Extent3D{Width: r.config.Width, Height: r.config.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   r.sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        r.config.Format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("creating msaa target: %w", err)
	}
	r.msaaView, err = r.msaaTexture.CreateView(nil)
	return err
}

func (r *Renderer) Draw(frame *backdrop.Frame) error {
	if r.released {
		return backdrop.ErrDisposed
	}
	if !r.attached {
		return errNotAttached
	}

	camera := make([]float32, 0, 32)
	camera = append(camera, frame.View[:]...)
	camera = append(camera, frame.Projection[:]...)
	if err := r.queue.WriteBuffer(r.cameraBuf, 0, wgpu.ToBytes(camera)); err != nil {
		return err
	}
	for _, gb := range r.groups {
		if err := r.syncGroup(gb); err != nil {
			return err
		}
	}

	next, err := r.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquiring surface texture: %w", err)
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	attachment := wgpu.RenderPassColorAttachment{
		View:       view,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
	}
	if r.msaaView != nil {
		attachment.View = r.msaaView
		attachment.ResolveTarget = view
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	defer pass.Release()

	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.cameraBG, nil)
	for _, gb := range r.groups {
		g := gb.group
		if g.Disposed() || g.Count == 0 {
			continue
		}
		pass.SetBindGroup(1, gb.bindGroup, nil)
		pass.SetVertexBuffer(shaders.SlotPositions, gb.positions, 0, wgpu.WholeSize)
		pass.SetVertexBuffer(shaders.SlotColors, gb.colors, 0, wgpu.WholeSize)
		pass.SetVertexBuffer(shaders.SlotAttribs, gb.attribs, 0, wgpu.WholeSize)
		pass.Draw(shaders.VerticesPerSprite, uint32(g.Count), 0, 0)
	}
	if err := pass.End(); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	r.queue.Submit(cmd)
	r.surface.Present()
	return nil
}

// syncGroup uploads whatever the simulator changed since the last frame.
func (r *Renderer) syncGroup(gb *groupBuffers) error {
	g := gb.group
	if g.Disposed() || g.Count == 0 {
		return nil
	}
	if g.PositionsDirty {
		if err := r.queue.WriteBuffer(gb.positions, 0, wgpu.ToBytes(g.Positions)); err != nil {
			return err
		}
		g.PositionsDirty = false
	}
	if g.ColorsDirty {
		if err := r.queue.WriteBuffer(gb.colors, 0, wgpu.ToBytes(g.Colors)); err != nil {
			return err
		}
		g.ColorsDirty = false
	}

	model := g.Model()
	uniform := make([]float32, 0, shaders.GroupUniformSize/4)
	uniform = append(uniform, model[:]...)
	uniform = append(uniform, float32(g.Size), float32(g.MaterialOpacity), 0, 0)
	return r.queue.WriteBuffer(gb.uniform, 0, wgpu.ToBytes(uniform))
}

func (r *Renderer) Resize(width, height int) {
	if r.released || width <= 0 || height <= 0 {
		return
	}
	r.config.Width = uint32(width)
	r.config.Height = uint32(height)
	if !r.attached {
		return
	}
	r.surface.Configure(r.adapter, r.device, r.config)
	if err := r.createMSAATarget(); err != nil {
		r.logger.Warnf("resize: %v", err)
	}
}

// Release frees every device object. Calling it again does nothing.
func (r *Renderer) Release() {
	if r.released {
		return
	}
	r.released = true
	r.attached = false

	for _, gb := range r.groups {
		gb.release()
	}
	r.groups = nil
	for k, t := range r.textures {
		t.release()
		delete(r.textures, k)
	}
	if r.msaaView != nil {
		r.msaaView.Release()
	}
	if r.msaaTexture != nil {
		r.msaaTexture.Release()
	}
	if r.cameraBG != nil {
		r.cameraBG.Release()
	}
	if r.cameraBuf != nil {
		r.cameraBuf.Release()
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.queue != nil {
		r.queue.Release()
	}
	if r.device != nil {
		r.device.Release()
	}
	if r.adapter != nil {
		r.adapter.Release()
	}
	if r.surface != nil {
		r.surface.Release()
	}
	if r.instance != nil {
		r.instance.Release()
	}
	r.logger.Debugf("gpu renderer released")
}
