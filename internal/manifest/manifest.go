// Package manifest assembles the result of one aggregation run.
package manifest

import (
	"time"

	"github.com/google/uuid"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/resolver"
)

// ChangeManifest is the aggregate result of one run. It is built once by Assemble
// and not modified afterwards.
type ChangeManifest struct {
	RunID                       string                          `json:"run_id" yaml:"run_id"`
	Generated                   time.Time                       `json:"generated" yaml:"generated"`
	BuildConfiguration          string                          `json:"build_configuration" yaml:"build_configuration"`
	ReferenceBuildConfiguration string                          `json:"reference_build_configuration" yaml:"reference_build_configuration"`
	FromVersion                 string                          `json:"from_version" yaml:"from_version"`
	ToVersion                   string                          `json:"to_version" yaml:"to_version"`
	ChangeDetails               []ci.ChangeDetail               `json:"change_details" yaml:"change_details"`
	IssueDetails                []resolver.ExternalIssueDetails `json:"issue_details" yaml:"issue_details"`
}

// HasChanges reports whether any change was found in the range. Renderers use it
// to substitute a placeholder comment.
func (m ChangeManifest) HasChanges() bool {
	return len(m.ChangeDetails) > 0
}

type Input struct {
	BuildConfiguration          string
	ReferenceBuildConfiguration string
	FromVersion                 string
	ToVersion                   string
	ChangeDetails               []ci.ChangeDetail
	IssueDetails                []resolver.ExternalIssueDetails
	Now                         func() time.Time
	NewID                       func() string
}

// Assemble builds the manifest from run output. Input slices are copied.
func Assemble(input Input) ChangeManifest {
	now := input.Now
	if now == nil {
		now = time.Now
	}
	newID := input.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return ChangeManifest{
		RunID:                       newID(),
		Generated:                   now(),
		BuildConfiguration:          input.BuildConfiguration,
		ReferenceBuildConfiguration: input.ReferenceBuildConfiguration,
		FromVersion:                 input.FromVersion,
		ToVersion:                   input.ToVersion,
		ChangeDetails:               cloneChanges(input.ChangeDetails),
		IssueDetails:                cloneDetails(input.IssueDetails),
	}
}

func cloneChanges(changes []ci.ChangeDetail) []ci.ChangeDetail {
	cloned := make([]ci.ChangeDetail, 0, len(changes))
	for _, change := range changes {
		change.Files = append([]ci.FileDetail(nil), change.Files...)
		cloned = append(cloned, change)
	}
	return cloned
}

func cloneDetails(details []resolver.ExternalIssueDetails) []resolver.ExternalIssueDetails {
	cloned := make([]resolver.ExternalIssueDetails, 0, len(details))
	for _, detail := range details {
		detail.Labels = append([]string(nil), detail.Labels...)
		cloned = append(cloned, detail)
	}
	return cloned
}
