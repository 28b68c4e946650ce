package rendergraph

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"
)

// cullingJobName, deferredDrawJobName, and selectionJobName are the
// well-known job names the Frame Executor looks for by convention,
// grounded in renderer.cpp's hard-coded job-name lookups.
const (
	cullingJobName       = "Mesh Culling Compute"
	deferredDrawJobName  = "Deferred Indirect Graphics"
	selectionJobName     = "Mesh Selection Graphics"
	compositeJobName      = "Composite Graphics"
	compositeOutputName   = "Composite Output"
	numDrawCallsBufferName = "Num Draw Calls"
	drawCallsBufferName    = "Draw Calls"
	indirectUniformName    = "indirectUniformData"
	selectionUniformName   = "uniformBuffer"
	selectedMeshBufferName = "selectedMesh"
)

// DrawDescriptor carries one frame's host-supplied matrices and camera
// pose into Draw.
type DrawDescriptor struct {
	ViewMatrix               [16]float32
	ProjectionMatrix         [16]float32
	ViewProjectionMatrix     [16]float32
	PrevViewMatrix           [16]float32
	PrevProjectionMatrix     [16]float32
	PrevViewProjectionMatrix [16]float32
	JitteredViewProjection   [16]float32
	CameraPosition           [4]float32
	CameraLookDir            [4]float32
	LightRadiance            [4]float32
	LightDir                 [4]float32
	RandomScalars            [4]float32
	AODistanceThreshold      float32
	ScreenWidth              float32
	ScreenHeight             float32
}

// Executor is the Frame Executor (C5): it records and submits one frame's
// commands per SPEC_FULL.md section 4.5.
type Executor struct {
	backend   Backend
	graph     *Graph
	registry  Registry
	selection *SelectionTracker

	numMeshes uint32
	frame     uint32

	pendingExplosionMultiplier *float32
	pendingSelectionMap        bool
}

// NewExecutor builds a Frame Executor around an assembled Graph.
func NewExecutor(backend Backend, graph *Graph, registry Registry, selection *SelectionTracker, numMeshes uint32) *Executor {
	return &Executor{backend: backend, graph: graph, registry: registry, selection: selection, numMeshes: numMeshes}
}

// SetExplosionMultiplier schedules a deferred-draw uniform update for the
// next Draw call.
func (e *Executor) SetExplosionMultiplier(value float32) {
	e.pendingExplosionMultiplier = &value
}

// HighlightSelectedMesh initiates the selection cycle; see SPEC_FULL.md
// section 4.6.
func (e *Executor) HighlightSelectedMesh(x, y int32) {
	e.selection.RequestHighlight(x, y)
}

// FrameIndex returns the number of Draw calls completed so far.
func (e *Executor) FrameIndex() uint32 {
	return e.frame
}

// Draw implements C5's draw(matrices, camera_pose) entry point.
func (e *Executor) Draw(desc DrawDescriptor) error {
	device := e.backend.Device()
	queue := e.backend.Queue()

	uniform := DefaultUniformData{
		ScreenWidth:              desc.ScreenWidth,
		ScreenHeight:             desc.ScreenHeight,
		FrameIndex:               e.frame,
		NumMeshes:                e.numMeshes,
		RandomScalars:            desc.RandomScalars,
		ViewMatrix:               desc.ViewMatrix,
		ProjectionMatrix:         desc.ProjectionMatrix,
		ViewProjectionMatrix:     desc.ViewProjectionMatrix,
		PrevViewMatrix:           desc.PrevViewMatrix,
		PrevProjectionMatrix:     desc.PrevProjectionMatrix,
		PrevViewProjectionMatrix: desc.PrevViewProjectionMatrix,
		JitteredViewProjection:   desc.JitteredViewProjection,
		CameraPosition:           desc.CameraPosition,
		CameraLookDir:            desc.CameraLookDir,
		LightRadiance:            desc.LightRadiance,
		LightDir:                 desc.LightDir,
		AODistanceThreshold:      desc.AODistanceThreshold,
	}
	defaultUniformBuf, _, ok := e.registry.Resolve(BufferNameDefaultUniform)
	if !ok {
		return &ConfigError{Field: BufferNameDefaultUniform, Msg: "default uniform buffer not registered"}
	}
	queue.WriteBuffer(defaultUniformBuf, 0, uniform.Bytes())

	if culling := e.graph.Job(cullingJobName); culling != nil {
		if counterBuf, _, ok := culling.OutputBuffer(numDrawCallsBufferName); ok {
			queue.WriteBuffer(counterBuf, 0, make([]byte, 16))
		}
	}

	if e.pendingExplosionMultiplier != nil {
		if deferred := e.graph.Job(deferredDrawJobName); deferred != nil {
			if buf, _, ok := deferred.OutputBuffer(indirectUniformName); ok {
				queue.WriteBuffer(buf, 0, explosionUniformBytes(e.numMeshes, *e.pendingExplosionMultiplier))
			}
		}
		e.pendingExplosionMultiplier = nil
	}

	selectionJob := e.graph.Job(selectionJobName)
	copyRequested := false
	if selectionJob != nil && e.selection.BeginCopyRequested() {
		x, y := e.selection.CursorCoord()
		if buf, _, ok := selectionJob.OutputBuffer(selectionUniformName); ok {
			queue.WriteBuffer(buf, 0, selectionCursorUniformBytes(-1, x, y))
			copyRequested = true
		}
	}

	var commandBuffers []*wgpu.CommandBuffer
	var frameErr error
	for _, job := range e.graph.Jobs() {
		cb, err := e.recordJob(device, job)
		if err != nil {
			frameErr = &GPUSubmitError{Job: job.Name, Err: err}
			log.Printf("rendergraph: dropping frame %d: %v", e.frame, frameErr)
			break
		}
		if cb != nil {
			commandBuffers = append(commandBuffers, cb)
		}
	}

	selectionCopied := false
	if frameErr == nil && copyRequested {
		cb, err := e.recordSelectionCopy(device, selectionJob)
		if err != nil {
			frameErr = &GPUSubmitError{Job: selectionJobName, Err: err}
			log.Printf("rendergraph: dropping frame %d: %v", e.frame, frameErr)
		} else {
			commandBuffers = append(commandBuffers, cb)
			selectionCopied = true
		}
	}

	if frameErr != nil {
		for _, cb := range commandBuffers {
			cb.Release()
		}
		e.frame++
		return frameErr
	}

	// A copy submitted on a prior frame is mapped on this frame: its map
	// starts only after this frame's command buffers, which may carry a new
	// selection copy into the same staging buffer, have been submitted.
	startMap := e.pendingSelectionMap
	e.pendingSelectionMap = selectionCopied

	for _, cb := range commandBuffers {
		queue.Submit(cb)
		cb.Release()
	}

	if startMap {
		if err := e.selection.StartMapAsync(); err != nil {
			return err
		}
	}
	if err := e.selection.Poll(); err != nil {
		return err
	}
	if selectionJob != nil && !e.selection.Pending() {
		info := e.selection.Current()
		if buf, _, ok := selectionJob.OutputBuffer(selectionUniformName); ok {
			queue.WriteBuffer(buf, 0, selectionCursorUniformBytes(info.MeshID, -1, -1))
		}
	}

	e.frame++
	return nil
}

func (e *Executor) recordJob(device *wgpu.Device, job *Job) (*wgpu.CommandBuffer, error) {
	if job.State != JobFinalized {
		return nil, fmt.Errorf("job %q recorded before finalize", job.Name)
	}

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}

	switch job.Kind {
	case JobKindGraphics:
		colorAttachments := make([]wgpu.RenderPassColorAttachment, len(job.colorAttachments))
		for i, ca := range job.colorAttachments {
			colorAttachments[i] = wgpu.RenderPassColorAttachment{
				View:       ca.view,
				LoadOp:     ca.loadOp,
				StoreOp:    ca.storeOp,
				ClearValue: clearColorAttachment,
			}
		}
		passDesc := &wgpu.RenderPassDescriptor{
			Label:            job.Name,
			ColorAttachments: colorAttachments,
		}
		if job.depthView != nil {
			passDesc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:            job.depthView,
				DepthLoadOp:     wgpu.LoadOpClear,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			}
		}

		pass := encoder.BeginRenderPass(passDesc)
		pass.PushDebugGroup(job.Name)
		pass.SetBindGroup(0, job.bindGroup0, nil)
		pass.SetBindGroup(1, job.bindGroup1, nil)
		pass.SetPipeline(job.renderPipeline)

		if vertexBuf, _, ok := e.registry.Resolve(BufferNameVertex); ok {
			pass.SetVertexBuffer(0, vertexBuf, 0, wgpu.WholeSize)
		}
		if indexBuf, _, ok := e.registry.Resolve(BufferNameIndex); ok {
			pass.SetIndexBuffer(indexBuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		}

		switch job.PassType {
		case PassTypeDrawMeshes:
			culling := e.graph.Job(cullingJobName)
			if culling == nil {
				return nil, fmt.Errorf("draw-meshes job %q has no %q sibling", job.Name, cullingJobName)
			}
			drawCalls, _, ok := culling.OutputBuffer(drawCallsBufferName)
			if !ok {
				return nil, fmt.Errorf("%q missing %q output", cullingJobName, drawCallsBufferName)
			}
			count, _, ok := culling.OutputBuffer(numDrawCallsBufferName)
			if !ok {
				return nil, fmt.Errorf("%q missing %q output", cullingJobName, numDrawCallsBufferName)
			}
			pass.MultiDrawIndexedIndirectCount(drawCalls, 0, count, 0, e.numMeshes)
		case PassTypeFullTriangle:
			if fsBuf, _, ok := e.registry.Resolve(BufferNameFullScreenTriangle); ok {
				pass.SetVertexBuffer(0, fsBuf, 0, wgpu.WholeSize)
			}
			pass.Draw(3, 1, 0, 0)
		}

		pass.PopDebugGroup()
		pass.End()

	case JobKindCompute:
		pass := encoder.BeginComputePass(nil)
		pass.SetBindGroup(0, job.bindGroup0, nil)
		pass.SetBindGroup(1, job.bindGroup1, nil)
		pass.SetPipeline(job.computePipeline)
		pass.DispatchWorkgroups(job.Dispatch[0], job.Dispatch[1], job.Dispatch[2])
		pass.End()

	case JobKindCopy:
		for _, pair := range job.copyPairs {
			size, err := textureCopySize(pair.src)
			if err != nil {
				return nil, err
			}
			encoder.CopyTextureToTexture(
				&wgpu.ImageCopyTexture{Texture: pair.src, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
				&wgpu.ImageCopyTexture{Texture: pair.dst, MipLevel: 0, Aspect: wgpu.TextureAspectAll},
				size,
			)
		}
	}

	return encoder.Finish(nil)
}

func textureCopySize(tex *wgpu.Texture) (wgpu.Extent3D, error) {
	if tex == nil {
		return wgpu.Extent3D{}, fmt.Errorf("copy source texture is nil")
	}
	return wgpu.Extent3D{Width: tex.Width(), Height: tex.Height(), DepthOrArrayLayers: 1}, nil
}

func (e *Executor) recordSelectionCopy(device *wgpu.Device, selectionJob *Job) (*wgpu.CommandBuffer, error) {
	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	srcBuf, _, ok := selectionJob.OutputBuffer(selectedMeshBufferName)
	if !ok {
		return nil, fmt.Errorf("selection job missing %q buffer", selectedMeshBufferName)
	}
	encoder.CopyBufferToBuffer(srcBuf, 0, e.selection.StagingBuffer(), 0, SelectMeshInfoBytes)
	return encoder.Finish(nil)
}

// GetSwapChainTexture returns the final composite texture the host
// presents via its own blit pipeline.
func (e *Executor) GetSwapChainTexture() (*wgpu.Texture, bool) {
	composite := e.graph.Job(compositeJobName)
	if composite == nil {
		return nil, false
	}
	tex, _, ok := composite.ColorAttachmentTexture(compositeOutputName)
	return tex, ok
}

// GetSelectionInfo returns the latest resolved selection record.
func (e *Executor) GetSelectionInfo() SelectMeshInfo {
	return e.selection.Current()
}

// GetNumMeshes returns the mesh count baked in at setup.
func (e *Executor) GetNumMeshes() uint32 {
	return e.numMeshes
}
