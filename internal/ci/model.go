// Package ci holds the CI-server domain model shared by build sources, the range
// aggregator and the issue resolvers.
package ci

// NumberNone is the display number a CI server reports for builds that never got one.
const NumberNone = "None"

// StatusSuccess is the normalized status of a successful build.
const StatusSuccess = "SUCCESS"

// Build is one executed run of a build configuration. Values are immutable once fetched.
type Build struct {
	ID          string `json:"id" yaml:"id"`
	Number      string `json:"number" yaml:"number"`
	Status      string `json:"status" yaml:"status"`
	BuildTypeID string `json:"build_type_id" yaml:"build_type_id"`
	WebURL      string `json:"web_url,omitempty" yaml:"web_url,omitempty"`
}

// BuildType is a named, stable build configuration.
type BuildType struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ProjectName string `json:"project_name" yaml:"project_name"`
	ProjectID   string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	WebURL      string `json:"web_url,omitempty" yaml:"web_url,omitempty"`
}

// ChangeDetail is one version-control commit associated with a build.
type ChangeDetail struct {
	ID       string       `json:"id" yaml:"id"`
	Version  string       `json:"version" yaml:"version"`
	Username string       `json:"username" yaml:"username"`
	Comment  string       `json:"comment" yaml:"comment"`
	WebURL   string       `json:"web_url,omitempty" yaml:"web_url,omitempty"`
	Files    []FileDetail `json:"files,omitempty" yaml:"files,omitempty"`
}

type FileDetail struct {
	File           string `json:"file" yaml:"file"`
	RelativeFile   string `json:"relative_file,omitempty" yaml:"relative_file,omitempty"`
	BeforeRevision string `json:"before_revision,omitempty" yaml:"before_revision,omitempty"`
	AfterRevision  string `json:"after_revision,omitempty" yaml:"after_revision,omitempty"`
}

// Issue references a ticket in an external tracker. Two issues with the same ID
// are interchangeable for enrichment.
type Issue struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// DistinctIssues drops issues whose ID was already seen, keeping first-seen order.
func DistinctIssues(issues []Issue) []Issue {
	if len(issues) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(issues))
	distinct := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if _, ok := seen[issue.ID]; ok {
			continue
		}
		seen[issue.ID] = struct{}{}
		distinct = append(distinct, issue)
	}
	return distinct
}
