package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pweiskircher/build-changes/internal/buildrange"
	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
	"github.com/pweiskircher/build-changes/internal/fs"
	"github.com/pweiskircher/build-changes/internal/manifest"
	"github.com/pweiskircher/build-changes/internal/output"
	"github.com/pweiskircher/build-changes/internal/report"
	"github.com/pweiskircher/build-changes/internal/resolver"
)

type AggregateOptions struct {
	Target TargetOptions
	// ReferenceBuild is the build type whose build list is scanned. Range
	// anchors are still taken from the target build type.
	ReferenceBuild string
	From           string
	To             string
	DeriveIssues   bool
	Settings       SettingsOptions

	Source   ci.Source
	Chain    *resolver.Chain
	Now      func() time.Time
	NewRunID func() string
	Logger   *slog.Logger
}

// RunAggregateDelta collects the changes and issues of every build between the
// two range markers, enriches the issues and writes the HTML report.
func RunAggregateDelta(ctx context.Context, workDir string, options AggregateOptions) (output.Report, error) {
	result := output.Report{CommandName: string(contracts.CommandAggregateDelta)}
	logger := loggerOrDiscard(options.Logger)

	settings, err := loadSettings(workDir, options.Settings, options.Source == nil)
	if err != nil {
		return result, err
	}
	result.ZeroChangesComment = settings.Report.ZeroChangesComment

	comparator, err := buildrange.ParseComparator(settings.RangeBy)
	if err != nil {
		return result, invalidSettings("range", err)
	}

	source := options.Source
	if source == nil {
		source, err = newSource(settings, logger)
		if err != nil {
			return result, err
		}
	}

	buildType, err := resolveBuildType(ctx, source, options.Target)
	if err != nil {
		return result, err
	}
	logger.Info("resolved build type", "build_type", buildType, "provider", settings.CIProvider)

	from := strings.TrimSpace(options.From)
	if from == "" {
		from, err = latestSuccessfulAnchor(ctx, source, buildType, comparator)
		if err != nil {
			return result, err
		}
	}
	to := strings.TrimSpace(options.To)
	if to == "" {
		to, err = runningAnchor(ctx, source, buildType, comparator)
		if err != nil {
			return result, err
		}
	}
	logger.Info("range anchors", "from", from, "to", to, "range_by", comparator.String())

	listFrom := buildType
	if reference := strings.TrimSpace(options.ReferenceBuild); reference != "" {
		listFrom = reference
	}
	builds, err := source.ListBuilds(ctx, listFrom)
	if err != nil {
		return result, fmt.Errorf("failed to list builds for %s: %w", listFrom, err)
	}

	inRange, err := buildrange.Aggregate(ctx, builds, from, to, comparator, func(_ context.Context, build ci.Build) ([]ci.Build, error) {
		return []ci.Build{build}, nil
	})
	if err != nil {
		return result, err
	}
	result.Builds = inRange

	changes, err := buildrange.Aggregate(ctx, builds, from, to, comparator, func(ctx context.Context, build ci.Build) ([]ci.ChangeDetail, error) {
		return source.ChangeDetailsForBuild(ctx, build)
	})
	if err != nil {
		return result, fmt.Errorf("failed to collect changes: %w", err)
	}

	issues, err := buildrange.Aggregate(ctx, builds, from, to, comparator, func(ctx context.Context, build ci.Build) ([]ci.Issue, error) {
		return source.IssuesForBuild(ctx, build)
	})
	if err != nil {
		return result, fmt.Errorf("failed to collect issues: %w", err)
	}

	chain := options.Chain
	if chain == nil {
		chain, err = newChain(settings, logger)
		if err != nil {
			return result, err
		}
	}

	if options.DeriveIssues {
		derived, err := chain.GetAssociatedIssues(ctx, changes)
		if err != nil {
			return result, err
		}
		issues = append(issues, derived...)
	}

	details, err := chain.GetExternalIssueDetails(ctx, issues)
	if err != nil {
		return result, err
	}
	logger.Info("aggregated range", "builds", len(inRange), "changes", len(changes), "issues", len(issues), "details", len(details))

	m := manifest.Assemble(manifest.Input{
		BuildConfiguration:          buildType,
		ReferenceBuildConfiguration: strings.TrimSpace(options.ReferenceBuild),
		FromVersion:                 from,
		ToVersion:                   to,
		ChangeDetails:               changes,
		IssueDetails:                details,
		Now:                         options.Now,
		NewID:                       options.NewRunID,
	})
	result.Manifest = &m

	if settings.Report.Path == "" {
		return result, nil
	}

	files, err := fs.NewSafeFS(workDir)
	if err != nil {
		return result, fmt.Errorf("failed to open working directory: %w", err)
	}
	written, err := report.Write(files, m, report.WriteOptions{
		Path:               settings.Report.Path,
		TemplatePath:       settings.Report.Template,
		ZeroChangesComment: settings.Report.ZeroChangesComment,
	})
	if err != nil {
		return result, err
	}
	logger.Debug("wrote report", "path", written)
	result.ReportPath = settings.Report.Path

	return result, nil
}

func latestSuccessfulAnchor(ctx context.Context, source ci.Source, buildType string, comparator buildrange.Comparator) (string, error) {
	latest, err := source.LatestSuccessfulBuild(ctx, buildType)
	if err != nil {
		return "", fmt.Errorf("failed to find latest successful build for %s: %w", buildType, err)
	}
	if latest == nil {
		return "", &TargetError{
			Code:       TargetErrorCodeNoSuccessfulBuild,
			ReasonCode: contracts.ReasonCodeRangeAnchorUnresolved,
			Message:    "could not find latest build for build type " + buildType,
			Hint:       "pass --from explicitly",
		}
	}
	return anchorMarker(*latest, comparator), nil
}

// runningAnchor uses the newest running build.
func runningAnchor(ctx context.Context, source ci.Source, buildType string, comparator buildrange.Comparator) (string, error) {
	running, err := source.RunningBuilds(ctx, buildType)
	if err != nil {
		return "", fmt.Errorf("failed to list running builds for %s: %w", buildType, err)
	}
	if len(running) == 0 {
		return "", &TargetError{
			Code:       TargetErrorCodeNoRunningBuild,
			ReasonCode: contracts.ReasonCodeRangeAnchorUnresolved,
			Message:    "could not find a running build for build type " + buildType,
			Hint:       "pass --to explicitly",
		}
	}
	sorted := ci.SortBuilds(running)
	return anchorMarker(sorted[len(sorted)-1], comparator), nil
}

// anchorMarker is the marker that makes comparator match build: its identifier
// for id ranges and builds without a display number, its number otherwise.
func anchorMarker(build ci.Build, comparator buildrange.Comparator) string {
	if comparator == buildrange.ComparatorByID {
		return build.ID
	}
	number := strings.TrimSpace(build.Number)
	if number == "" || strings.EqualFold(number, ci.NumberNone) {
		return build.ID
	}
	return number
}
