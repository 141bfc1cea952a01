package shaders

import (
	_ "embed"
)

//go:embed particles.wgsl
var ParticlesWGSL string

// Vertex buffer slots used by ParticlesWGSL.
const (
	SlotPositions = 0
	SlotColors    = 1
	SlotAttribs   = 2
)

// Uniform block sizes in bytes.
const (
	CameraUniformSize = 128
	GroupUniformSize  = 80
)

// VerticesPerSprite is the strip length drawn for each particle instance.
const VerticesPerSprite = 4
