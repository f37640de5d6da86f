package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
	"github.com/pweiskircher/build-changes/internal/output"
)

type ListBuildsOptions struct {
	Target   TargetOptions
	Running  bool
	Settings SettingsOptions

	Source ci.Source
	Logger *slog.Logger
}

// RunListBuilds lists a build type's builds in identifier order, the order range
// markers are matched in.
func RunListBuilds(ctx context.Context, workDir string, options ListBuildsOptions) (output.Report, error) {
	result := output.Report{CommandName: string(contracts.CommandBuilds)}
	logger := loggerOrDiscard(options.Logger)

	settings, err := loadSettings(workDir, options.Settings, options.Source == nil)
	if err != nil {
		return result, err
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

	var builds []ci.Build
	if options.Running {
		builds, err = source.RunningBuilds(ctx, buildType)
	} else {
		builds, err = source.ListBuilds(ctx, buildType)
	}
	if err != nil {
		return result, fmt.Errorf("failed to list builds for %s: %w", buildType, err)
	}

	result.Builds = ci.SortBuilds(builds)
	logger.Info("listed builds", "build_type", buildType, "builds", len(result.Builds), "running", options.Running)
	return result, nil
}
