package manifest

import "github.com/hashicorp/hcl/v2"

// File is the top-level structure of one .hcl manifest file.
type File struct {
	Pipelines []*PipelineBlock `hcl:"pipeline,block"`
}

// Args is an open attribute block whose values are evaluated into plain Go
// values before they reach a factory or the engine.
type Args struct {
	Body hcl.Body `hcl:",remain"`
}

// PipelineBlock declares one named pipeline graph.
type PipelineBlock struct {
	Name    string         `hcl:"name,label"`
	Loaders []*LoaderBlock `hcl:"loader,block"`
	Steps   []*StepBlock   `hcl:"step,block"`
	Run     *RunBlock      `hcl:"run,block"`
}

// LoaderBlock declares a data-source node bound to a registered loader.
type LoaderBlock struct {
	Name      string `hcl:"name,label"`
	Uses      string `hcl:"uses"`
	Arguments *Args  `hcl:"arguments,block"`
}

// StepBlock declares a transformer node bound to a registered transformer.
// The input block wires this node's expected keys to predecessor output
// fields; the supervision block does the same for the label channel of
// supervised transformers. Each wiring attribute evaluates to a
// ["source_node", "source_key"] pair.
type StepBlock struct {
	Name        string `hcl:"name,label"`
	Uses        string `hcl:"uses"`
	Arguments   *Args  `hcl:"arguments,block"`
	Input       *Args  `hcl:"input,block"`
	Supervision *Args  `hcl:"supervision,block"`
}

// RunBlock declares the default run targets of a pipeline: which node
// outputs to return and which nodes to fit. CLI flags override both.
type RunBlock struct {
	Outputs []string `hcl:"outputs,optional"`
	Fit     []string `hcl:"fit,optional"`
}
