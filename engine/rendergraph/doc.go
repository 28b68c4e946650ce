// Package rendergraph builds and executes a data-driven GPU render graph
// from a declarative job-pipeline description and a packed mesh asset.
//
// A pipeline JSON document declares an ordered list of Jobs, each either
// Graphics, Compute, or Copy. The Descriptor Parser (descriptor.go) turns
// that JSON into typed JobDescriptors. The Job Builder (job_builder.go)
// constructs each Job in two phases: phase one allocates the job's own
// output textures and buffers, phase two resolves input attachments from
// sibling jobs and builds bind groups and pipelines. The Graph Assembler
// (graph.go) drives both phases across the full job list in declaration
// order. The Frame Executor (executor.go) records and submits one frame's
// commands, and the selection read-back (selection.go) runs a bounded
// async handshake to report which mesh sits under the cursor.
package rendergraph
