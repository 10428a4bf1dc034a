package hcl

import "github.com/hashicorp/hcl/v2"

// fileSchema is the top-level structure of one pipeline definition file.
type fileSchema struct {
	Pipelines []*pipelineSchema `hcl:"pipeline,block"`
}

type pipelineSchema struct {
	Name string       `hcl:"name,label"`
	On   *onSchema    `hcl:"on,block"`
	Jobs []*jobSchema `hcl:"job,block"`
}

// onSchema groups trigger rule blocks by event kind. Rules of different
// kinds never compete for the same event, so kind grouping preserves the
// first-match-wins contract within each kind.
type onSchema struct {
	Push        []*pushRuleSchema        `hcl:"push,block"`
	PullRequest []*pullRequestRuleSchema `hcl:"pull_request,block"`
	Tag         []*tagRuleSchema         `hcl:"tag,block"`
	WorkflowRun []*workflowRunRuleSchema `hcl:"workflow_run,block"`
}

type pushRuleSchema struct {
	Branches []string `hcl:"branches,optional"`
}

type pullRequestRuleSchema struct{}

type tagRuleSchema struct {
	Patterns []string `hcl:"patterns,optional"`
}

type workflowRunRuleSchema struct {
	Source     string   `hcl:"source"`
	Conclusion string   `hcl:"conclusion,optional"`
	Branches   []string `hcl:"branches,optional"`
}

type jobSchema struct {
	Name      string         `hcl:"name,label"`
	Steps     []string       `hcl:"steps"`
	Needs     []string       `hcl:"needs,optional"`
	Condition hcl.Expression `hcl:"condition,optional"`
	Artifacts []string       `hcl:"artifacts,optional"`
	Matrix    *matrixSchema  `hcl:"matrix,block"`
	Release   *releaseSchema `hcl:"release,block"`
}

type matrixSchema struct {
	Axes        []*axisSchema `hcl:"axis,block"`
	FailFast    *bool         `hcl:"fail_fast,optional"`
	MaxParallel int           `hcl:"max_parallel,optional"`
}

type axisSchema struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values"`
}

type releaseSchema struct {
	Files         []string       `hcl:"files"`
	Name          hcl.Expression `hcl:"name,optional"`
	Draft         bool           `hcl:"draft,optional"`
	Prerelease    bool           `hcl:"prerelease,optional"`
	Body          string         `hcl:"body,optional"`
	GenerateNotes bool           `hcl:"generate_notes,optional"`
	OnExisting    string         `hcl:"on_existing,optional"`
}
