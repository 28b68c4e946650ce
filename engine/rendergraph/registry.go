package rendergraph

import "github.com/cogentcore/webgpu/wgpu"

// Well-known global buffer names pre-populated by the Resource Registry
// during setup; see SPEC_FULL.md section 4.2.
const (
	BufferNameVertex              = "vertex-buffer"
	BufferNameIndex               = "index-buffer"
	BufferNameMeshTriangleRanges  = "meshTriangleIndexRanges"
	BufferNameMeshExtents         = "meshExtents"
	BufferNameMeshMaterialIDs     = "meshMaterialIDs"
	BufferNameMeshMaterials       = "meshMaterials"
	BufferNameVisibilityFlags     = "visibilityFlags"
	BufferNameDefaultUniform      = "default-uniform-buffer"
	BufferNameFullScreenTriangle  = "full-screen-triangle"
	BufferNameBlueNoise           = "blueNoiseBuffer"
)

// blueNoiseEntries is the fixed 256-entry float32x2 dithering table size
// carried over from the original implementation.
const blueNoiseEntries = 256

// Registry is the name-addressed store of GPU buffers owned by the core.
// Jobs borrow references to registry entries by name; they never own a
// buffer that the registry also owns.
type Registry interface {
	// Put registers a newly-created buffer under name. Reusing a name
	// fails with *DuplicateResource.
	Put(name string, buf *wgpu.Buffer, size uint64) error

	// Resolve looks up a previously registered buffer by name.
	Resolve(name string) (buf *wgpu.Buffer, size uint64, ok bool)

	// Names returns every registered buffer name, for diagnostics.
	Names() []string
}

type registry struct {
	buffers map[string]*wgpu.Buffer
	sizes   map[string]uint64
}

var _ Registry = (*registry)(nil)

// NewRegistry returns an empty Registry ready to receive the well-known
// global buffers during setup.
func NewRegistry() Registry {
	return &registry{
		buffers: make(map[string]*wgpu.Buffer),
		sizes:   make(map[string]uint64),
	}
}

func (r *registry) Put(name string, buf *wgpu.Buffer, size uint64) error {
	if _, exists := r.buffers[name]; exists {
		return &DuplicateResource{Kind: "buffer", Name: name}
	}
	r.buffers[name] = buf
	r.sizes[name] = size
	return nil
}

func (r *registry) Resolve(name string) (*wgpu.Buffer, uint64, bool) {
	buf, ok := r.buffers[name]
	if !ok {
		return nil, 0, false
	}
	return buf, r.sizes[name], true
}

func (r *registry) Names() []string {
	names := make([]string, 0, len(r.buffers))
	for name := range r.buffers {
		names = append(names, name)
	}
	return names
}
