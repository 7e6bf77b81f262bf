package renderer

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// StaticIndex is the texture index reserved for an avatar's static fallback image.
const StaticIndex = -1

// ErrTextureNotFound is returned when drawing a frame that was never uploaded.
var ErrTextureNotFound = errors.New("frame texture not found")

// Surface is anything that can host a WebGPU presentation surface, such as a window.Window.
type Surface interface {
	// SurfaceDescriptor returns the platform descriptor used to create the surface.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int
}

// textureKey addresses one frame of one avatar in the texture cache.
type textureKey struct {
	key   string
	index int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	textures map[textureKey]FrameTexture

	backendType RendererBackendType
	backend     rendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// Renderer uploads avatar frames to the GPU once and draws them to the window surface.
//
// Frames are cached by avatar key and frame index. The Renderer satisfies the avatar
// FrameUploader contract, so it can be handed straight to the avatar service: each frame
// reached during warmup is uploaded exactly once, and playback only draws cached textures.
// The Renderer also implements a backend which allows for multiple backend API implementations to exist.
type Renderer interface {
	// UploadFrame decodes a frame and stores it as a GPU texture under (key, index).
	// A frame that is already resident is not uploaded again.
	//
	// Parameters:
	//   - key: the avatar key the frame belongs to
	//   - index: the frame index, or StaticIndex for the static fallback image
	//   - frame: the encoded frame
	//
	// Returns:
	//   - error: an error if the frame could not be decoded or uploaded
	UploadFrame(key string, index int, frame common.Frame) error

	// Texture returns the cached texture for (key, index).
	//
	// Parameters:
	//   - key: the avatar key
	//   - index: the frame index
	//
	// Returns:
	//   - FrameTexture: the texture, or nil if not resident
	//   - bool: true if the texture is resident
	Texture(key string, index int) (FrameTexture, bool)

	// TextureCount returns the number of resident frame textures.
	TextureCount() int

	// Evict releases every texture belonging to key.
	//
	// Parameters:
	//   - key: the avatar key to evict
	//
	// Returns:
	//   - int: the number of textures released
	Evict(key string) int

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the next surface texture and clears it.
	// Must be paired with EndFrame and Present.
	//
	// Returns:
	//   - error: ErrNoSurface for offscreen renderers, or an acquisition error
	BeginFrame() error

	// Draw draws a resident frame texture into dst, clipped to a circle.
	//
	// Parameters:
	//   - key: the avatar key
	//   - index: the frame index, or StaticIndex
	//   - dst: the destination rectangle in surface pixels
	//
	// Returns:
	//   - error: ErrTextureNotFound if the frame was never uploaded
	Draw(key string, index int, dst image.Rectangle) error

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	EndFrame()

	// Present presents the current surface texture to the window.
	Present()

	// Release frees every cached texture and the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the given backend type.
// A nil surface creates an offscreen renderer that uploads textures but cannot present.
//
// Parameters:
//   - backendType: the GPU backend to use
//   - surface: the window or other surface to present to, or nil
//   - options: functional options applied before the backend is created
//
// Returns:
//   - Renderer: the created renderer
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		textures:    make(map[textureKey]FrameTexture),
		backendType: backendType,
	}

	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			if surface != nil {
				r.backend = newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter)
			} else {
				r.backend = newWGPURendererBackend(nil, r.forceFallbackAdapter)
			}
		}
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if surface != nil {
		r.backend.ConfigureSurface(surface.Width(), surface.Height())
	}
	return r
}

func (r *renderer) UploadFrame(key string, index int, frame common.Frame) error {
	tk := textureKey{key: key, index: index}

	r.mu.Lock()
	_, exists := r.textures[tk]
	r.mu.Unlock()
	if exists {
		return nil
	}

	stagingData, err := frame.StagingData()
	if err != nil {
		return fmt.Errorf("failed to stage frame %d of %s: %w", index, key, err)
	}
	tex, err := r.backend.CreateFrameTexture(fmt.Sprintf("%s#%d", key, index), stagingData)
	if err != nil {
		return fmt.Errorf("failed to upload frame %d of %s: %w", index, key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, raced := r.textures[tk]; raced {
		tex.Release()
		return nil
	}
	r.textures[tk] = tex
	return nil
}

func (r *renderer) Texture(key string, index int) (FrameTexture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tex, ok := r.textures[textureKey{key: key, index: index}]
	return tex, ok
}

func (r *renderer) TextureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.textures)
}

func (r *renderer) Evict(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	released := 0
	for tk, tex := range r.textures {
		if tk.key != key {
			continue
		}
		tex.Release()
		delete(r.textures, tk)
		released++
	}
	return released
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) Draw(key string, index int, dst image.Rectangle) error {
	tex, ok := r.Texture(key, index)
	if !ok {
		return fmt.Errorf("%w: %s#%d", ErrTextureNotFound, key, index)
	}
	r.backend.DrawTexture(tex, dst)
	return nil
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Release() {
	r.mu.Lock()
	for tk, tex := range r.textures {
		tex.Release()
		delete(r.textures, tk)
	}
	r.mu.Unlock()
	r.backend.Release()
}
