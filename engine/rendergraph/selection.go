package rendergraph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// selectionMaxFrames bounds the read-back handshake: it always completes
// within this many frames under normal operation.
const selectionMaxFrames = 4

// SelectionTracker drives the bounded asynchronous selection read-back
// described by SPEC_FULL.md section 4.6. It owns the staging buffer and
// the in-flight map-async future.
type SelectionTracker struct {
	backend Backend
	staging *wgpu.Buffer

	pending     bool
	framesSince int
	cursorX     int32
	cursorY     int32

	mapInFlight bool
	mapResult   chan mapOutcome

	current SelectMeshInfo
}

type mapOutcome struct {
	data []byte
	err  error
}

// NewSelectionTracker allocates the 1024-byte selection staging buffer
// (MapRead|CopyDst) and returns a tracker in the idle state.
func NewSelectionTracker(backend Backend) (*SelectionTracker, error) {
	buf, err := backend.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Selection Staging Buffer",
		Size:  1024,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("rendergraph: allocate selection staging buffer: %w", err)
	}
	return &SelectionTracker{backend: backend, staging: buf}, nil
}

// StagingBuffer returns the buffer C5 copies the selection job's uniform
// buffer into once per requested cycle.
func (s *SelectionTracker) StagingBuffer() *wgpu.Buffer {
	return s.staging
}

// RequestHighlight implements highlight_selected_mesh(x, y): sets the
// cursor coordinate and mesh-id sentinel and flags a pending request.
func (s *SelectionTracker) RequestHighlight(x, y int32) {
	s.pending = true
	s.framesSince = 0
	s.cursorX = x
	s.cursorY = y
	s.current.MeshID = 0
}

// Pending reports whether a selection cycle is still in flight.
func (s *SelectionTracker) Pending() bool {
	return s.pending
}

// CursorCoord returns the coordinate to write into the selection job's
// uniform buffer this frame.
func (s *SelectionTracker) CursorCoord() (x, y int32) {
	return s.cursorX, s.cursorY
}

// BeginCopyRequested reports whether C5 should append the
// CopyBufferToBuffer step this frame.
func (s *SelectionTracker) BeginCopyRequested() bool {
	return s.pending && !s.mapInFlight
}

// StartMapAsync begins the asynchronous read of the staging buffer after
// C5 has submitted the copy. It must be called at most once per cycle.
func (s *SelectionTracker) StartMapAsync() error {
	if s.mapInFlight {
		return nil
	}
	s.mapInFlight = true
	result := make(chan mapOutcome, 1)
	s.mapResult = result

	err := s.staging.MapAsync(wgpu.MapModeRead, 0, SelectMeshInfoBytes, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			result <- mapOutcome{err: fmt.Errorf("map status %v", status)}
			return
		}
		data, err := s.staging.GetMappedRange(0, SelectMeshInfoBytes)
		if err != nil {
			result <- mapOutcome{err: err}
			return
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		result <- mapOutcome{data: cp}
	})
	if err != nil {
		s.mapInFlight = false
		return &ReadbackError{Err: err}
	}
	return nil
}

// Poll advances the read-back state machine by one frame. It must be
// called once per frame after StartMapAsync has been issued. It returns a
// non-nil error only for a failed map; the pending flag is cleared either
// way so the cycle never exceeds selectionMaxFrames.
func (s *SelectionTracker) Poll() error {
	if !s.pending {
		return nil
	}
	s.framesSince++

	if s.mapInFlight {
		select {
		case outcome := <-s.mapResult:
			s.mapInFlight = false
			s.pending = false
			if outcome.err != nil {
				return &ReadbackError{Err: outcome.err}
			}
			info := ParseSelectMeshInfo(outcome.data)
			info.MeshID--
			s.current = info
			s.staging.Unmap()
			s.cursorX, s.cursorY = -1, -1
		default:
			// Still in flight; caller's GPU backend should be polled via
			// its instance/device poll primitive before the next Poll.
		}
	}

	if s.framesSince >= selectionMaxFrames {
		s.pending = false
		s.mapInFlight = false
	}

	return nil
}

// Current returns the latest resolved selection. MeshID == -1 means "no
// mesh" (the shader's zero sentinel, decremented by one on read-back).
func (s *SelectionTracker) Current() SelectMeshInfo {
	return s.current
}
