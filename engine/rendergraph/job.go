package rendergraph

import "github.com/cogentcore/webgpu/wgpu"

// JobState is a Job's position in its two-phase construction lifecycle.
type JobState int

const (
	JobDeclared JobState = iota
	JobOutputsCreated
	JobFinalized
	JobRetired
)

// colorAttachment is a pre-built render-pass color attachment record for one
// TextureOutput, filled in during phase 1 and reused every frame.
type colorAttachment struct {
	name    string
	view    *wgpu.TextureView
	texture *wgpu.Texture
	loadOp  wgpu.LoadOp
	storeOp wgpu.StoreOp
}

// bufferOutput is one BufferOutput's allocated storage, recorded during
// phase 1 so sibling jobs can resolve it in phase 2.
type bufferOutput struct {
	name   string
	buffer *wgpu.Buffer
	size   uint64
}

// copyPair is one resolved (input texture -> output texture) pairing for a
// Copy job, built during phase 2.
type copyPair struct {
	src *wgpu.Texture
	dst *wgpu.Texture
}

// Job is one named unit of GPU work in the render graph. It is built in two
// phases (create_outputs then finalize) and is safe to record commands from
// only once it reaches JobFinalized; see SPEC_FULL.md section 4.3.
type Job struct {
	Name     string
	Kind     JobKind
	PassType PassType
	Dispatch [3]uint32
	State    JobState

	desc PipelineDescriptor

	colorAttachments []colorAttachment
	bufferOutputs    []bufferOutput
	ownedBuffers     map[string]*wgpu.Buffer // shader-resource buffers owned by this job

	depthView    *wgpu.TextureView
	depthTexture *wgpu.Texture

	copyPairs []copyPair

	bindGroupLayout0 *wgpu.BindGroupLayout
	bindGroupLayout1 *wgpu.BindGroupLayout
	bindGroup0       *wgpu.BindGroup
	bindGroup1       *wgpu.BindGroup

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline

	// Named handles used by the Frame Executor to find the "Draw Calls" /
	// "Num Draw Calls" culling outputs, uniform buffers addressable by
	// set_buffer_data, and the selection job's uniform buffer.
	namedBuffers map[string]*wgpu.Buffer
	namedSizes   map[string]uint64
}

// OutputBuffer returns a job's named output buffer (BufferOutput or an
// owned shader-resource buffer), used by C5 to find well-known handles like
// a culling job's "Draw Calls" / "Num Draw Calls" outputs.
func (j *Job) OutputBuffer(name string) (*wgpu.Buffer, uint64, bool) {
	buf, ok := j.namedBuffers[name]
	if !ok {
		return nil, 0, false
	}
	return buf, j.namedSizes[name], true
}

// ColorAttachmentTexture returns the texture backing a named TextureOutput,
// used by get_swap_chain_texture and the Copy-pass input resolver.
func (j *Job) ColorAttachmentTexture(name string) (*wgpu.Texture, *wgpu.TextureView, bool) {
	for _, ca := range j.colorAttachments {
		if ca.name == name {
			return ca.texture, ca.view, true
		}
	}
	return nil, nil, false
}
