package rendergraph

import "github.com/cogentcore/webgpu/wgpu"

// Backend is the GPU Backend collaborator: device, queue, and instance
// access needed to build and record a render graph. The Host constructs
// one around its own wgpu device/adapter/surface setup; the render graph
// never creates a device, adapter, or surface itself.
//
// This mirrors the interface-wrapped-struct shape the teacher repo uses
// for its own renderer backend, narrowed to exactly what C3/C5/C6 call.
type Backend interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
}

type backend struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	instance *wgpu.Instance
}

var _ Backend = (*backend)(nil)

// NewBackend wraps an already-initialized device/queue/instance triple
// (the Host owns adapter and surface selection) as a Backend.
func NewBackend(device *wgpu.Device, queue *wgpu.Queue, instance *wgpu.Instance) Backend {
	return &backend{device: device, queue: queue, instance: instance}
}

func (b *backend) Device() *wgpu.Device     { return b.device }
func (b *backend) Queue() *wgpu.Queue       { return b.queue }
func (b *backend) Instance() *wgpu.Instance { return b.instance }
