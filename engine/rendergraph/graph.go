package rendergraph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Graph is the assembled render graph: every job in declaration order,
// each finalized and ready for per-frame recording.
type Graph struct {
	// Order is the declared execution order; C5 iterates it unchanged.
	Order []string
	jobs  map[string]*Job
}

// Job returns a job by name, or nil if it was never declared.
func (g *Graph) Job(name string) *Job {
	return g.jobs[name]
}

// Jobs returns the assembled jobs in declaration order.
func (g *Graph) Jobs() []*Job {
	out := make([]*Job, 0, len(g.Order))
	for _, name := range g.Order {
		out = append(out, g.jobs[name])
	}
	return out
}

// AssembleGraph implements C4: parse the job list, run phase 1 for every
// job in declaration order, then phase 2 for every job against the full
// sibling set. See SPEC_FULL.md section 4.4.
func AssembleGraph(builder *JobBuilder, loader BlobLoader, jobListPath string, defaultUniform *wgpu.Buffer, defaultUniformSize uint64, sampler *wgpu.Sampler) (*Graph, error) {
	listData, err := loader.Load(jobListPath)
	if err != nil {
		return nil, fmt.Errorf("rendergraph: load job list %q: %w", jobListPath, err)
	}
	entries, err := ParseJobList(listData)
	if err != nil {
		return nil, err
	}

	jobs := make(map[string]*Job, len(entries))
	order := make([]string, 0, len(entries))

	for _, entry := range entries {
		pipelineData, err := loader.Load(entry.PipelinePath)
		if err != nil {
			return nil, &ConfigError{Job: entry.Name, Field: "Pipeline", Msg: err.Error()}
		}
		desc, err := ParsePipeline(entry.Name, pipelineData)
		if err != nil {
			return nil, err
		}

		job, err := builder.CreateOutputs(entry, desc)
		if err != nil {
			return nil, err
		}
		jobs[entry.Name] = job
		order = append(order, entry.Name)
	}

	for _, name := range order {
		job := jobs[name]
		if err := builder.Finalize(job, jobs, defaultUniform, defaultUniformSize, sampler); err != nil {
			return nil, err
		}
	}

	return &Graph{Order: order, jobs: jobs}, nil
}
