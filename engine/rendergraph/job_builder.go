package rendergraph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexStrideBytes is the fixed per-vertex stride: position, uv, normal,
// each a float32x4, 16 bytes apiece.
const vertexStrideBytes = 48

// clearColorAttachment is the fixed clear color for every TextureOutput,
// carried over from the original implementation's render-job setup.
var clearColorAttachment = wgpu.Color{R: 0, G: 0, B: 0.3, A: 0}

// storageMinBindingSize is the reserved min-binding-size for storage
// bindings whose declared size is not known up front.
const storageMinBindingSize = 256

// JobBuilder constructs Jobs from JobDescriptors in the two phases
// described by SPEC_FULL.md section 4.3.
type JobBuilder struct {
	backend Backend
	width   uint32
	height  uint32
	loader  BlobLoader
}

// NewJobBuilder returns a JobBuilder that allocates screen-dimensioned
// resources at width x height and compiles shader source through loader.
func NewJobBuilder(backend Backend, width, height uint32, loader BlobLoader) *JobBuilder {
	return &JobBuilder{backend: backend, width: width, height: height, loader: loader}
}

// CreateOutputs is phase 1: allocate a job's own output textures and
// buffers. It does not resolve any input attachment.
func (jb *JobBuilder) CreateOutputs(entry JobListEntry, desc PipelineDescriptor) (*Job, error) {
	job := &Job{
		Name:         entry.Name,
		Kind:         entry.Kind,
		PassType:     entry.PassType,
		Dispatch:     entry.Dispatch,
		State:        JobDeclared,
		desc:         desc,
		ownedBuffers: make(map[string]*wgpu.Buffer),
		namedBuffers: make(map[string]*wgpu.Buffer),
		namedSizes:   make(map[string]uint64),
	}
	device := jb.backend.Device()

	for _, a := range desc.Attachments {
		switch a.Role {
		case AttachmentTextureOutput:
			tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
				Label: job.Name + " " + a.Name,
				Size: wgpu.Extent3D{
					Width:              jb.width,
					Height:             jb.height,
					DepthOrArrayLayers: 1,
				},
				MipLevelCount: 1,
				SampleCount:   1,
				Dimension:     wgpu.TextureDimension2D,
				Format:        a.Format,
				Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageStorageBinding,
			})
			if err != nil {
				return nil, &PipelineBuildError{Job: job.Name, Err: fmt.Errorf("allocate output texture %q: %w", a.Name, err)}
			}
			view, err := tex.CreateView(nil)
			if err != nil {
				return nil, &PipelineBuildError{Job: job.Name, Err: fmt.Errorf("create view for output texture %q: %w", a.Name, err)}
			}
			job.colorAttachments = append(job.colorAttachments, colorAttachment{
				name:    a.Name,
				view:    view,
				texture: tex,
				loadOp:  desc.Raster.LoadOp.wgpu(),
				storeOp: desc.Raster.StoreOp.wgpu(),
			})
		case AttachmentBufferOutput:
			usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
			if a.Indirect {
				usage |= wgpu.BufferUsageIndirect
			}
			buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: job.Name + " " + a.Name,
				Size:  a.Size,
				Usage: usage,
			})
			if err != nil {
				return nil, &PipelineBuildError{Job: job.Name, Err: fmt.Errorf("allocate output buffer %q: %w", a.Name, err)}
			}
			job.bufferOutputs = append(job.bufferOutputs, bufferOutput{name: a.Name, buffer: buf, size: a.Size})
			job.namedBuffers[a.Name] = buf
			job.namedSizes[a.Name] = a.Size
		}
	}

	for _, r := range desc.ShaderResources {
		if r.Kind != ResourceKindBuffer || r.Size == 0 {
			continue
		}
		usage := shaderResourceBufferUsage(r.Usage)
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: job.Name + " " + r.Name,
			Size:  r.Size,
			Usage: usage,
		})
		if err != nil {
			return nil, &PipelineBuildError{Job: job.Name, Err: fmt.Errorf("allocate shader resource %q: %w", r.Name, err)}
		}
		job.ownedBuffers[r.Name] = buf
		job.namedBuffers[r.Name] = buf
		job.namedSizes[r.Name] = r.Size
	}

	job.State = JobOutputsCreated
	return job, nil
}

func shaderResourceBufferUsage(usage ResourceUsage) wgpu.BufferUsage {
	switch usage {
	case ResourceUsageReadOnlyStorage, ResourceUsageReadWriteStorage:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	default:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	}
}

// Finalize is phase 2: resolve sibling attachments, compile the shader, and
// build bind groups and the pipeline.
func (jb *JobBuilder) Finalize(job *Job, siblings map[string]*Job, defaultUniform *wgpu.Buffer, defaultUniformSize uint64, sampler *wgpu.Sampler) error {
	if job.State != JobOutputsCreated {
		return &ConfigError{Job: job.Name, Field: "state", Msg: "finalize called before create_outputs completed"}
	}

	resolvedTextureViews := make(map[string]*wgpu.TextureView)
	resolvedBuffers := make(map[string]resolvedBufferBinding)

	for _, a := range job.desc.Attachments {
		if !a.Role.isInput() {
			continue
		}
		parent, ok := siblings[a.ParentJob]
		if !ok {
			return &UnresolvedAttachment{Job: job.Name, Attachment: a.Name, ParentJob: a.ParentJob}
		}
		if a.Role.isTexture() {
			_, view, ok := parent.ColorAttachmentTexture(a.Name)
			if !ok {
				return &UnresolvedAttachment{Job: job.Name, Attachment: a.Name, ParentJob: a.ParentJob}
			}
			resolvedTextureViews[a.Name] = view
		} else {
			buf, size, ok := parent.OutputBuffer(a.Name)
			if !ok {
				return &UnresolvedAttachment{Job: job.Name, Attachment: a.Name, ParentJob: a.ParentJob}
			}
			resolvedBuffers[a.Name] = resolvedBufferBinding{buffer: buf, size: size}
		}
	}

	if job.Kind == JobKindCopy {
		for _, a := range job.desc.Attachments {
			if a.Role != AttachmentTextureInput {
				continue
			}
			parent := siblings[a.ParentJob]
			srcTex, _, _ := parent.ColorAttachmentTexture(a.Name)
			dstTex, _, ok := job.ColorAttachmentTexture(a.Name)
			if !ok {
				return &UnresolvedAttachment{Job: job.Name, Attachment: a.Name, ParentJob: a.ParentJob}
			}
			job.copyPairs = append(job.copyPairs, copyPair{src: srcTex, dst: dstTex})
		}
		job.State = JobFinalized
		return nil
	}

	device := jb.backend.Device()

	shaderSrc, err := jb.loader.Load(job.desc.Shader)
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: fmt.Errorf("load shader %q: %w", job.desc.Shader, err)}
	}
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          job.Name + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(trimTrailingNUL(shaderSrc))},
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}

	group0Entries, group0Bindings, err := jb.buildGroup0(job, resolvedTextureViews, resolvedBuffers)
	if err != nil {
		return err
	}
	needsSampler := len(group0Bindings.textureNames) > 0 || jb.anyShaderResourceTexture(job)
	group1Entries, group1Bindings := jb.buildGroup1(job, defaultUniform, defaultUniformSize, needsSampler)

	layout0, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   job.Name + " Group 0 Layout",
		Entries: group0Entries,
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	layout1, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   job.Name + " Group 1 Layout",
		Entries: group1Entries,
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	job.bindGroupLayout0 = layout0
	job.bindGroupLayout1 = layout1

	bg0Entries, err := jb.resolveGroupEntries(job, group0Bindings, resolvedTextureViews, resolvedBuffers, sampler)
	if err != nil {
		return err
	}
	bg0, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   job.Name + " Group 0",
		Layout:  layout0,
		Entries: bg0Entries,
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	job.bindGroup0 = bg0

	bg1Entries, err := jb.resolveGroup1Entries(job, group1Bindings, defaultUniform, sampler)
	if err != nil {
		return err
	}
	bg1, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   job.Name + " Group 1",
		Layout:  layout1,
		Entries: bg1Entries,
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	job.bindGroup1 = bg1

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            job.Name + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout0, layout1},
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}

	switch job.Kind {
	case JobKindCompute:
		cp, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  job.Name + " Compute Pipeline",
			Layout: pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: "cs_main",
			},
		})
		if err != nil {
			return &PipelineBuildError{Job: job.Name, Err: err}
		}
		job.computePipeline = cp
	case JobKindGraphics:
		if err := jb.buildGraphicsPipeline(job, device, module, pipelineLayout); err != nil {
			return err
		}
	}

	job.State = JobFinalized
	return nil
}

type resolvedBufferBinding struct {
	buffer *wgpu.Buffer
	size   uint64
}

type groupBindings struct {
	bufferNames  []string
	textureNames []string
}

// buildGroup0 builds the group-0 layout entries from a job's declared
// attachments, skipping TextureOutput entries for graphics jobs (they
// become color attachments, not bindings).
func (jb *JobBuilder) buildGroup0(job *Job, textures map[string]*wgpu.TextureView, buffers map[string]resolvedBufferBinding) ([]wgpu.BindGroupLayoutEntry, groupBindings, error) {
	var entries []wgpu.BindGroupLayoutEntry
	var bindings groupBindings
	binding := uint32(0)

	for _, a := range job.desc.Attachments {
		if a.Role == AttachmentTextureOutput && job.Kind == JobKindGraphics {
			continue
		}
		switch {
		case a.Role.isTexture():
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: bindingVisibility(job.Kind, "texture"),
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			})
			bindings.textureNames = append(bindings.textureNames, a.Name)
		default:
			var size uint64
			if a.Role == AttachmentBufferOutput {
				size = a.Size
			} else if rb, ok := buffers[a.Name]; ok {
				size = rb.size
			}
			if size == 0 {
				size = storageMinBindingSize
			}
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: bindingVisibility(job.Kind, "storage-rw"),
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeStorage,
					MinBindingSize: size,
				},
			})
			bindings.bufferNames = append(bindings.bufferNames, a.Name)
		}
		binding++
	}

	return entries, bindings, nil
}

// buildGroup1 builds the group-1 layout entries: shader resources in
// declared order, then the default uniform buffer, then the shared sampler
// iff a texture binding exists anywhere in the job.
func (jb *JobBuilder) buildGroup1(job *Job, defaultUniform *wgpu.Buffer, defaultUniformSize uint64, needsSampler bool) ([]wgpu.BindGroupLayoutEntry, groupBindings) {
	var entries []wgpu.BindGroupLayoutEntry
	var bindings groupBindings
	binding := uint32(0)

	for _, r := range job.desc.ShaderResources {
		if r.Kind == ResourceKindTexture {
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: bindingVisibility(job.Kind, "texture"),
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			})
			bindings.textureNames = append(bindings.textureNames, r.Name)
			binding++
			continue
		}
		size := r.Size
		kind := "storage-rw"
		bufferType := wgpu.BufferBindingTypeStorage
		if r.Usage == ResourceUsageUniform {
			kind = "uniform"
			bufferType = wgpu.BufferBindingTypeUniform
		} else if r.Usage == ResourceUsageReadOnlyStorage {
			bufferType = wgpu.BufferBindingTypeReadOnlyStorage
		}
		if size == 0 {
			size = storageMinBindingSize
		}
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: bindingVisibility(job.Kind, kind),
			Buffer: wgpu.BufferBindingLayout{
				Type:           bufferType,
				MinBindingSize: size,
			},
		})
		bindings.bufferNames = append(bindings.bufferNames, r.Name)
		binding++
	}

	// Trailing default uniform buffer entry, sized from its real length.
	entries = append(entries, wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: bindingVisibility(job.Kind, "uniform"),
		Buffer: wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: defaultUniformSize,
		},
	})
	binding++

	if needsSampler {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: bindingVisibility(job.Kind, "texture"),
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering},
		})
	}

	return entries, bindings
}

func (jb *JobBuilder) anyShaderResourceTexture(job *Job) bool {
	for _, r := range job.desc.ShaderResources {
		if r.Kind == ResourceKindTexture {
			return true
		}
	}
	return false
}

func (jb *JobBuilder) resolveGroupEntries(job *Job, bindings groupBindings, textures map[string]*wgpu.TextureView, buffers map[string]resolvedBufferBinding, sampler *wgpu.Sampler) ([]wgpu.BindGroupEntry, error) {
	entries := make([]wgpu.BindGroupEntry, 0, len(bindings.textureNames)+len(bindings.bufferNames))
	binding := uint32(0)

	for _, a := range job.desc.Attachments {
		if a.Role == AttachmentTextureOutput && job.Kind == JobKindGraphics {
			continue
		}
		if a.Role.isTexture() {
			view, ok := textures[a.Name]
			if !ok {
				// Own output, not a borrowed input.
				_, view, ok = job.ColorAttachmentTexture(a.Name)
				if !ok {
					return nil, &UnresolvedAttachment{Job: job.Name, Attachment: a.Name, ParentJob: a.ParentJob}
				}
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: binding, TextureView: view})
		} else {
			var buf *wgpu.Buffer
			if a.Role == AttachmentBufferOutput {
				buf = job.namedBuffers[a.Name]
			} else if rb, ok := buffers[a.Name]; ok {
				buf = rb.buffer
			}
			if buf == nil {
				return nil, &UnresolvedAttachment{Job: job.Name, Attachment: a.Name, ParentJob: a.ParentJob}
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Offset: 0, Size: wgpu.WholeSize})
		}
		binding++
	}

	return entries, nil
}

func (jb *JobBuilder) resolveGroup1Entries(job *Job, bindings groupBindings, defaultUniform *wgpu.Buffer, sampler *wgpu.Sampler) ([]wgpu.BindGroupEntry, error) {
	var entries []wgpu.BindGroupEntry
	binding := uint32(0)

	for _, r := range job.desc.ShaderResources {
		if r.Kind == ResourceKindTexture {
			// No concrete texture-kind shader resource is produced by any
			// job in this spec's component design; unresolved by design.
			return nil, &UnresolvedAttachment{Job: job.Name, Attachment: r.Name, ParentJob: ""}
		}
		buf, ok := job.ownedBuffers[r.Name]
		if !ok {
			buf = job.namedBuffers[r.Name]
		}
		if buf == nil {
			return nil, &UnresolvedAttachment{Job: job.Name, Attachment: r.Name, ParentJob: ""}
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Offset: 0, Size: wgpu.WholeSize})
		binding++
	}

	entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Buffer: defaultUniform, Offset: 0, Size: wgpu.WholeSize})
	binding++

	needsSampler := len(bindings.textureNames) > 0 || jb.anyShaderResourceTexture(job)
	if needsSampler {
		entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Sampler: sampler})
	}

	return entries, nil
}

// bindingVisibility computes shader-stage visibility per SPEC_FULL.md
// section 3: compute jobs expose every binding to the compute stage only;
// graphics jobs expose textures/uniforms to vertex+fragment, but restrict
// read-write storage buffers to fragment only.
func bindingVisibility(kind JobKind, bindingKind string) wgpu.ShaderStage {
	if kind == JobKindCompute {
		return wgpu.ShaderStageCompute
	}
	if bindingKind == "storage-rw" {
		return wgpu.ShaderStageFragment
	}
	return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
}

func (jb *JobBuilder) buildGraphicsPipeline(job *Job, device *wgpu.Device, module *wgpu.ShaderModule, layout *wgpu.PipelineLayout) error {
	var colorTargets []wgpu.ColorTargetState
	for _, a := range job.desc.Attachments {
		if a.Role != AttachmentTextureOutput {
			continue
		}
		colorTargets = append(colorTargets, wgpu.ColorTargetState{
			Format:    a.Format,
			WriteMask: wgpu.ColorWriteMaskAll,
		})
	}

	depthTex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label: job.Name + " Depth",
		Size: wgpu.Extent3D{
			Width:              jb.width,
			Height:             jb.height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	depthView, err := depthTex.CreateView(nil)
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	job.depthTexture = depthTex
	job.depthView = depthView

	created, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  job.Name + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: vertexStrideBytes,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 1},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 2},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    colorTargets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: job.desc.Raster.FrontFace.wgpu(),
			CullMode:  job.desc.Raster.CullMode.wgpu(),
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		DepthStencil: &wgpu.DepthStencilState{
			Format:              wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled:   job.desc.DepthStencil.WriteEnabled,
			DepthCompare:        job.desc.DepthStencil.DepthFunc.wgpu(),
			DepthBias:           -1,
			DepthBiasSlopeScale: 0.5,
			DepthBiasClamp:      1.0,
		},
	})
	if err != nil {
		return &PipelineBuildError{Job: job.Name, Err: err}
	}
	job.renderPipeline = created
	return nil
}
