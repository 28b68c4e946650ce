package rendergraph

import (
	"encoding/json"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// JobKind is the GPU work category of a Job.
type JobKind int

const (
	JobKindGraphics JobKind = iota
	JobKindCompute
	JobKindCopy
)

func parseJobKind(s string) (JobKind, error) {
	switch s {
	case "Graphics", "":
		return JobKindGraphics, nil
	case "Compute":
		return JobKindCompute, nil
	case "Copy":
		return JobKindCopy, nil
	default:
		return 0, fmt.Errorf("unrecognized job type %q", s)
	}
}

// PassType hints to the Frame Executor how to record a Job's commands.
type PassType int

const (
	PassTypeCompute PassType = iota
	PassTypeDrawMeshes
	PassTypeFullTriangle
	PassTypeCopy
	PassTypeSwapChain
	PassTypeDepthPrepass
)

func parsePassType(s string) (PassType, error) {
	switch s {
	case "Compute":
		return PassTypeCompute, nil
	case "Draw Meshes":
		return PassTypeDrawMeshes, nil
	case "Full Triangle":
		return PassTypeFullTriangle, nil
	case "Copy":
		return PassTypeCopy, nil
	case "Swap Chain":
		return PassTypeSwapChain, nil
	case "Depth Prepass":
		return PassTypeDepthPrepass, nil
	default:
		return 0, fmt.Errorf("unrecognized pass type %q", s)
	}
}

// AttachmentRole distinguishes the four attachment kinds a Job may declare.
type AttachmentRole int

const (
	AttachmentTextureInput AttachmentRole = iota
	AttachmentTextureOutput
	AttachmentBufferInput
	AttachmentBufferOutput
)

func parseAttachmentRole(s string) (AttachmentRole, error) {
	switch s {
	case "TextureInput":
		return AttachmentTextureInput, nil
	case "TextureOutput":
		return AttachmentTextureOutput, nil
	case "BufferInput":
		return AttachmentBufferInput, nil
	case "BufferOutput":
		return AttachmentBufferOutput, nil
	default:
		return 0, fmt.Errorf("unrecognized attachment type %q", s)
	}
}

func (r AttachmentRole) isInput() bool {
	return r == AttachmentTextureInput || r == AttachmentBufferInput
}

func (r AttachmentRole) isTexture() bool {
	return r == AttachmentTextureInput || r == AttachmentTextureOutput
}

// ResourceUsage is the binding usage of a declared shader resource.
type ResourceUsage int

const (
	ResourceUsageUniform ResourceUsage = iota
	ResourceUsageReadOnlyStorage
	ResourceUsageReadWriteStorage
)

func parseResourceUsage(s string) (ResourceUsage, error) {
	switch s {
	case "uniform", "":
		return ResourceUsageUniform, nil
	case "read_only_storage":
		return ResourceUsageReadOnlyStorage, nil
	case "read_write_storage":
		return ResourceUsageReadWriteStorage, nil
	default:
		return 0, fmt.Errorf("unrecognized shader resource usage %q", s)
	}
}

// ResourceKind is the GPU object category of a declared shader resource.
type ResourceKind int

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindTexture
)

func parseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case "buffer", "":
		return ResourceKindBuffer, nil
	case "texture":
		return ResourceKindTexture, nil
	default:
		return 0, fmt.Errorf("unrecognized shader resource kind %q", s)
	}
}

var textureFormats = map[string]wgpu.TextureFormat{
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"rg16float":   wgpu.TextureFormatRG16Float,
	"r32float":    wgpu.TextureFormatR32Float,
}

func parseTextureFormat(s string) (wgpu.TextureFormat, error) {
	if s == "" {
		return wgpu.TextureFormatRGBA32Float, nil
	}
	f, ok := textureFormats[s]
	if !ok {
		return 0, fmt.Errorf("unrecognized texture format %q", s)
	}
	return f, nil
}

// CullMode mirrors the RasterState.CullMode key.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

func parseCullMode(s string) (CullMode, error) {
	switch s {
	case "None", "":
		return CullModeNone, nil
	case "Back":
		return CullModeBack, nil
	case "Front":
		return CullModeFront, nil
	default:
		return 0, fmt.Errorf("unrecognized cull mode %q", s)
	}
}

func (c CullMode) wgpu() wgpu.CullMode {
	switch c {
	case CullModeBack:
		return wgpu.CullModeBack
	case CullModeFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeNone
	}
}

// FrontFace mirrors the RasterState.FrontFace key.
type FrontFace int

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

func parseFrontFace(s string) (FrontFace, error) {
	switch s {
	case "CounterClockwise", "":
		return FrontFaceCCW, nil
	case "Clockwise":
		return FrontFaceCW, nil
	default:
		return 0, fmt.Errorf("unrecognized front face %q", s)
	}
}

func (f FrontFace) wgpu() wgpu.FrontFace {
	if f == FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

// LoadOp mirrors the RasterState.LoadOp key.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

func parseLoadOp(s string) (LoadOp, error) {
	switch s {
	case "Clear", "":
		return LoadOpClear, nil
	case "Load":
		return LoadOpLoad, nil
	default:
		return 0, fmt.Errorf("unrecognized load op %q", s)
	}
}

func (o LoadOp) wgpu() wgpu.LoadOp {
	if o == LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

// StoreOp mirrors the RasterState.StoreOp key.
type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDiscard
)

func parseStoreOp(s string) (StoreOp, error) {
	switch s {
	case "Store", "":
		return StoreOpStore, nil
	case "Discard":
		return StoreOpDiscard, nil
	default:
		return 0, fmt.Errorf("unrecognized store op %q", s)
	}
}

func (o StoreOp) wgpu() wgpu.StoreOp {
	if o == StoreOpDiscard {
		return wgpu.StoreOpDiscard
	}
	return wgpu.StoreOpStore
}

// DepthFunc mirrors the DepthStencilState.DepthFunc key.
type DepthFunc int

const (
	DepthFuncLessEqual DepthFunc = iota
	DepthFuncNever
	DepthFuncLess
	DepthFuncEqual
	DepthFuncGreater
	DepthFuncNotEqual
	DepthFuncGreaterEqual
	DepthFuncAlways
)

func parseDepthFunc(s string) (DepthFunc, error) {
	switch s {
	case "LessEqual", "":
		return DepthFuncLessEqual, nil
	case "Never":
		return DepthFuncNever, nil
	case "Less":
		return DepthFuncLess, nil
	case "Equal":
		return DepthFuncEqual, nil
	case "Greater":
		return DepthFuncGreater, nil
	case "NotEqual":
		return DepthFuncNotEqual, nil
	case "GreaterEqual":
		return DepthFuncGreaterEqual, nil
	case "Always":
		return DepthFuncAlways, nil
	default:
		return 0, fmt.Errorf("unrecognized depth func %q", s)
	}
}

func (f DepthFunc) wgpu() wgpu.CompareFunction {
	switch f {
	case DepthFuncNever:
		return wgpu.CompareFunctionNever
	case DepthFuncLess:
		return wgpu.CompareFunctionLess
	case DepthFuncEqual:
		return wgpu.CompareFunctionEqual
	case DepthFuncGreater:
		return wgpu.CompareFunctionGreater
	case DepthFuncNotEqual:
		return wgpu.CompareFunctionNotEqual
	case DepthFuncGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case DepthFuncAlways:
		return wgpu.CompareFunctionAlways
	default:
		return wgpu.CompareFunctionLessEqual
	}
}

// AttachmentDescriptor is one parsed entry from a pipeline document's
// Attachments array.
type AttachmentDescriptor struct {
	Name      string
	Role      AttachmentRole
	ParentJob string
	Format    wgpu.TextureFormat
	Size      uint64
	Indirect  bool
}

// ShaderResourceDescriptor is one parsed entry from a pipeline document's
// ShaderResources array.
type ShaderResourceDescriptor struct {
	Name string
	Kind ResourceKind
	Usage ResourceUsage
	Size  uint64
}

// DepthStencilDescriptor is the parsed DepthStencilState block.
type DepthStencilDescriptor struct {
	Enabled       bool
	WriteEnabled  bool
	DepthFunc     DepthFunc
	StencilEnable bool
}

// RasterDescriptor is the parsed RasterState block.
type RasterDescriptor struct {
	CullMode  CullMode
	FrontFace FrontFace
	LoadOp    LoadOp
	StoreOp   StoreOp
}

// PipelineDescriptor is the parsed content of one Jobs[i].Pipeline document.
type PipelineDescriptor struct {
	Shader          string
	Attachments     []AttachmentDescriptor
	ShaderResources []ShaderResourceDescriptor
	DepthStencil    DepthStencilDescriptor
	Raster          RasterDescriptor
}

// JobDescriptor is a fully-typed, validated description of one job, joining
// the top-level Jobs[] entry with its referenced pipeline document.
type JobDescriptor struct {
	Name     string
	Kind     JobKind
	PassType PassType
	Dispatch [3]uint32
	Pipeline PipelineDescriptor
}

// rawJobList mirrors the top-level { "Jobs": [...] } document shape.
type rawJobList struct {
	Jobs []rawJob `json:"Jobs"`
}

type rawJob struct {
	Name     string    `json:"Name"`
	Type     string    `json:"Type"`
	PassType string    `json:"PassType"`
	Pipeline string    `json:"Pipeline"`
	Dispatch []uint32  `json:"Dispatch"`
}

type rawAttachment struct {
	Name      string `json:"Name"`
	Type      string `json:"Type"`
	ParentJob string `json:"ParentJob"`
	Format    string `json:"Format"`
	Size      uint64 `json:"Size"`
	Usage     string `json:"Usage"`
}

type rawShaderResource struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Usage       string `json:"usage"`
	Size        uint64 `json:"size"`
	ShaderStage string `json:"shader_stage"`
}

type rawDepthStencilState struct {
	DepthEnable    bool   `json:"DepthEnable"`
	DepthWriteMask string `json:"DepthWriteMask"`
	DepthFunc      string `json:"DepthFunc"`
	StencilEnable  bool   `json:"StencilEnable"`
}

type rawRasterState struct {
	CullMode  string `json:"CullMode"`
	FrontFace string `json:"FrontFace"`
	LoadOp    string `json:"LoadOp"`
	StoreOp   string `json:"StoreOp"`
}

type rawPipeline struct {
	Shader          string                `json:"Shader"`
	Attachments     []rawAttachment       `json:"Attachments"`
	ShaderResources []rawShaderResource   `json:"ShaderResources"`
	DepthStencilState *rawDepthStencilState `json:"DepthStencilState"`
	RasterState       *rawRasterState       `json:"RasterState"`
}

// ParseJobList parses the top-level job-pipeline document and returns the
// ordered list of job names together with their raw (pipeline-less) fields.
// Callers resolve each job's Pipeline document separately via ParsePipeline,
// since it may be fetched from a different blob.
func ParseJobList(data []byte) ([]JobListEntry, error) {
	var doc rawJobList
	if err := json.Unmarshal(trimTrailingNUL(data), &doc); err != nil {
		return nil, &ConfigError{Field: "Jobs", Msg: err.Error()}
	}
	if doc.Jobs == nil {
		return nil, &ConfigError{Field: "Jobs", Msg: "missing mandatory top-level Jobs array"}
	}

	seen := make(map[string]bool, len(doc.Jobs))
	entries := make([]JobListEntry, 0, len(doc.Jobs))
	for _, j := range doc.Jobs {
		if j.Name == "" {
			return nil, &ConfigError{Field: "Name", Msg: "job missing mandatory Name"}
		}
		if seen[j.Name] {
			return nil, &DuplicateResource{Kind: "job", Name: j.Name}
		}
		seen[j.Name] = true

		if j.Type == "" {
			return nil, &ConfigError{Job: j.Name, Field: "Type", Msg: "job missing mandatory Type"}
		}
		kind, err := parseJobKind(j.Type)
		if err != nil {
			return nil, &ConfigError{Job: j.Name, Field: "Type", Msg: err.Error()}
		}
		passType, err := parsePassType(j.PassType)
		if err != nil {
			return nil, &ConfigError{Job: j.Name, Field: "PassType", Msg: err.Error()}
		}
		if j.Pipeline == "" {
			return nil, &ConfigError{Job: j.Name, Field: "Pipeline", Msg: "missing mandatory Pipeline path"}
		}

		var dispatch [3]uint32
		if len(j.Dispatch) == 3 {
			dispatch = [3]uint32{j.Dispatch[0], j.Dispatch[1], j.Dispatch[2]}
		} else if len(j.Dispatch) != 0 {
			return nil, &ConfigError{Job: j.Name, Field: "Dispatch", Msg: "must have exactly 3 elements"}
		}

		entries = append(entries, JobListEntry{
			Name:         j.Name,
			Kind:         kind,
			PassType:     passType,
			PipelinePath: j.Pipeline,
			Dispatch:     dispatch,
		})
	}
	return entries, nil
}

// JobListEntry is one entry of the top-level Jobs[] array, before its
// pipeline document has been resolved and parsed.
type JobListEntry struct {
	Name         string
	Kind         JobKind
	PassType     PassType
	PipelinePath string
	Dispatch     [3]uint32
}

// ParsePipeline parses one job's pipeline document into a PipelineDescriptor.
func ParsePipeline(jobName string, data []byte) (PipelineDescriptor, error) {
	var raw rawPipeline
	if err := json.Unmarshal(trimTrailingNUL(data), &raw); err != nil {
		return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "Pipeline", Msg: err.Error()}
	}
	if raw.Attachments == nil {
		return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "Attachments", Msg: "missing mandatory Attachments array"}
	}

	desc := PipelineDescriptor{Shader: raw.Shader}

	seenAttachments := make(map[string]bool, len(raw.Attachments))
	for _, a := range raw.Attachments {
		if a.Name == "" {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "Attachments[].Name", Msg: "attachment missing mandatory Name"}
		}
		if seenAttachments[a.Name] {
			return PipelineDescriptor{}, &DuplicateResource{Kind: "attachment", Name: jobName + "." + a.Name}
		}
		seenAttachments[a.Name] = true

		role, err := parseAttachmentRole(a.Type)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "Attachments[].Type", Msg: err.Error()}
		}
		if role.isInput() && a.ParentJob == "" {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "Attachments[].ParentJob", Msg: "input attachment missing mandatory ParentJob"}
		}

		format, err := parseTextureFormat(a.Format)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "Attachments[].Format", Msg: err.Error()}
		}

		desc.Attachments = append(desc.Attachments, AttachmentDescriptor{
			Name:      a.Name,
			Role:      role,
			ParentJob: a.ParentJob,
			Format:    format,
			Size:      a.Size,
			Indirect:  a.Usage == "Indirect",
		})
	}

	seenResources := make(map[string]bool, len(raw.ShaderResources))
	for _, r := range raw.ShaderResources {
		if r.Name == "" {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "ShaderResources[].name", Msg: "shader resource missing mandatory name"}
		}
		if seenResources[r.Name] {
			return PipelineDescriptor{}, &DuplicateResource{Kind: "shader resource", Name: jobName + "." + r.Name}
		}
		seenResources[r.Name] = true

		kind, err := parseResourceKind(r.Type)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "ShaderResources[].type", Msg: err.Error()}
		}
		usage, err := parseResourceUsage(r.Usage)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "ShaderResources[].usage", Msg: err.Error()}
		}

		desc.ShaderResources = append(desc.ShaderResources, ShaderResourceDescriptor{
			Name:  r.Name,
			Kind:  kind,
			Usage: usage,
			Size:  r.Size,
		})
	}

	if raw.DepthStencilState != nil {
		depthFunc, err := parseDepthFunc(raw.DepthStencilState.DepthFunc)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "DepthStencilState.DepthFunc", Msg: err.Error()}
		}
		desc.DepthStencil = DepthStencilDescriptor{
			Enabled:       raw.DepthStencilState.DepthEnable,
			WriteEnabled:  raw.DepthStencilState.DepthWriteMask == "One",
			DepthFunc:     depthFunc,
			StencilEnable: raw.DepthStencilState.StencilEnable,
		}
	} else {
		desc.DepthStencil = DepthStencilDescriptor{Enabled: true, WriteEnabled: true, DepthFunc: DepthFuncLessEqual}
	}

	if raw.RasterState != nil {
		cullMode, err := parseCullMode(raw.RasterState.CullMode)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "RasterState.CullMode", Msg: err.Error()}
		}
		frontFace, err := parseFrontFace(raw.RasterState.FrontFace)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "RasterState.FrontFace", Msg: err.Error()}
		}
		loadOp, err := parseLoadOp(raw.RasterState.LoadOp)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "RasterState.LoadOp", Msg: err.Error()}
		}
		storeOp, err := parseStoreOp(raw.RasterState.StoreOp)
		if err != nil {
			return PipelineDescriptor{}, &ConfigError{Job: jobName, Field: "RasterState.StoreOp", Msg: err.Error()}
		}
		desc.Raster = RasterDescriptor{CullMode: cullMode, FrontFace: frontFace, LoadOp: loadOp, StoreOp: storeOp}
	} else {
		desc.Raster = RasterDescriptor{CullMode: CullModeNone, FrontFace: FrontFaceCCW, LoadOp: LoadOpClear, StoreOp: StoreOpStore}
	}

	return desc, nil
}

// trimTrailingNUL drops a single trailing NUL byte appended by Blob Loaders
// that treat text files C-string style; encoding/json rejects any byte after
// the top-level value, so the NUL has to go before parsing.
func trimTrailingNUL(data []byte) []byte {
	if n := len(data); n > 0 && data[n-1] == 0 {
		return data[:n-1]
	}
	return data
}
