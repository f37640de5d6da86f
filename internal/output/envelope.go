package output

import (
	"fmt"
	"time"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
	"github.com/pweiskircher/build-changes/internal/manifest"
)

// pattern: Functional Core

// Report is command-level output data rendered in human, JSON or YAML mode.
// Manifest is set by aggregate-delta; Builds lists the builds the command covered.
type Report struct {
	CommandName        string
	Manifest           *manifest.ChangeManifest
	Builds             []ci.Build
	ZeroChangesComment string
	ReportPath         string
}

// Data is the envelope payload.
type Data struct {
	Manifest   *manifest.ChangeManifest `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Builds     []ci.Build               `json:"builds,omitempty" yaml:"builds,omitempty"`
	Comment    string                   `json:"comment,omitempty" yaml:"comment,omitempty"`
	ReportPath string                   `json:"report_path,omitempty" yaml:"report_path,omitempty"`
}

func (report Report) Counts() contracts.AggregateCounts {
	counts := contracts.AggregateCounts{Builds: len(report.Builds)}
	if report.Manifest != nil {
		counts.Changes = len(report.Manifest.ChangeDetails)
		counts.Issues = len(report.Manifest.IssueDetails)
	}
	return counts
}

// Comment is the placeholder shown instead of an empty change list.
func (report Report) Comment() string {
	if report.Manifest == nil || report.Manifest.HasChanges() {
		return ""
	}
	return report.ZeroChangesComment
}

func BuildEnvelope(report Report, duration time.Duration) (contracts.CommandEnvelope, error) {
	env := contracts.CommandEnvelope{
		EnvelopeVersion: contracts.EnvelopeVersionV1,
		Command: contracts.CommandMeta{
			Name:       report.CommandName,
			DurationMS: duration.Milliseconds(),
		},
		Counts: report.Counts(),
	}

	if report.Manifest != nil || len(report.Builds) > 0 {
		env.Data = Data{
			Manifest:   report.Manifest,
			Builds:     report.Builds,
			Comment:    report.Comment(),
			ReportPath: report.ReportPath,
		}
	}

	if err := contracts.ValidateEnvelopeBasics(env); err != nil {
		return contracts.CommandEnvelope{}, fmt.Errorf("failed to build command envelope: %w", err)
	}

	return env, nil
}
