package renderer

import (
	"image"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// FrameTexture is a single avatar frame resident on the GPU.
type FrameTexture interface {
	// Width returns the texture width in pixels.
	Width() uint32

	// Height returns the texture height in pixels.
	Height() uint32

	// View returns the sampled texture view, or nil for backends without a device.
	View() *wgpu.TextureView

	// Release frees the GPU resources held by the texture.
	Release()
}

// rendererBackend is the set of GPU operations the Renderer needs.
// The texture cache and frame lifecycle live in the Renderer; the backend only owns GPU handles.
type rendererBackend interface {
	// CreateFrameTexture uploads RGBA staging data into a new sampled texture.
	//
	// Parameters:
	//   - label: debug label for the texture
	//   - stagingData: the pixels and dimensions to upload
	//
	// Returns:
	//   - FrameTexture: the created texture
	//   - error: an error if the texture could not be created
	CreateFrameTexture(label string, stagingData common.TextureStagingData) (FrameTexture, error)

	// ConfigureSurface reconfigures the presentation surface for a new size.
	// Backends without a surface ignore this call.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode applied on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the next surface texture and begins the clear pass.
	//
	// Returns:
	//   - error: an error if the surface texture could not be acquired
	BeginFrame() error

	// DrawTexture draws a texture into the destination rectangle of the current frame.
	//
	// Parameters:
	//   - tex: a texture previously returned by CreateFrameTexture
	//   - dst: the destination rectangle in surface pixels
	DrawTexture(tex FrameTexture, dst image.Rectangle)

	// EndFrame ends the current render pass and submits the command buffer.
	EndFrame()

	// Present presents the acquired surface texture.
	Present()

	// Release frees the device, adapter, surface and instance.
	Release()
}
