package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pweiskircher/build-changes/internal/buildkite"
	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/config"
	"github.com/pweiskircher/build-changes/internal/contracts"
	"github.com/pweiskircher/build-changes/internal/github"
	"github.com/pweiskircher/build-changes/internal/jira"
	"github.com/pweiskircher/build-changes/internal/resolver"
	"github.com/pweiskircher/build-changes/internal/teamcity"
)

// TargetOptions names the build type a command works on, either directly or
// by project and build name.
type TargetOptions struct {
	BuildType string
	Project   string
	BuildName string
}

// SettingsOptions carries what every command needs to resolve runtime settings.
// A zero Environment is read from the process environment.
type SettingsOptions struct {
	ConfigPath  string
	Flags       config.RuntimeFlags
	Environment config.Environment
}

func loadSettings(workDir string, options SettingsOptions, requireCI bool) (config.RuntimeSettings, error) {
	var (
		cfg contracts.Config
		err error
	)
	if path := strings.TrimSpace(options.ConfigPath); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		cfg, err = config.Read(path)
	} else {
		cfg, _, err = config.ReadOptional(filepath.Join(workDir, contracts.ConfigFilePath))
	}
	if err != nil {
		return config.RuntimeSettings{}, fmt.Errorf("failed to load config: %w", err)
	}

	environment := options.Environment
	if environment == (config.Environment{}) {
		environment = config.EnvironmentFromOS()
	}

	settings, err := config.Resolve(cfg, options.Flags, environment, config.ResolveOptions{RequireCI: requireCI})
	if err != nil {
		if config.IsResolveErrorCode(err, config.ResolveErrorCodeMissingServer) {
			return config.RuntimeSettings{}, &TargetError{
				Code:       TargetErrorCodeMissingServer,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "no CI server configured",
				Hint:       "pass --server or set " + config.EnvTeamCityURL,
				Err:        err,
			}
		}
		return config.RuntimeSettings{}, err
	}
	return settings, nil
}

func newSource(settings config.RuntimeSettings, logger *slog.Logger) (ci.Source, error) {
	switch settings.CIProvider {
	case contracts.CIProviderBuildkite:
		source, err := buildkite.NewSource(buildkite.Options{
			Organization: settings.Buildkite.Organization,
			Token:        settings.Buildkite.APIToken,
			Logger:       logger,
		})
		if err != nil {
			return nil, invalidSettings("buildkite source", err)
		}
		return source, nil
	default:
		client, err := teamcity.NewClient(teamcity.Options{
			ServerURL: settings.TeamCity.ServerURL,
			Token:     settings.TeamCity.Token,
			Logger:    logger,
		})
		if err != nil {
			return nil, invalidSettings("teamcity source", err)
		}
		return client, nil
	}
}

// newChain registers a resolver for every tracker with complete settings.
func newChain(settings config.RuntimeSettings, logger *slog.Logger) (*resolver.Chain, error) {
	resolvers := make([]resolver.IssueResolver, 0, 2)

	if settings.JiraEnabled() {
		adapter, err := jira.NewCloudAdapter(jira.CloudAdapterOptions{
			BaseURL:  settings.Jira.BaseURL,
			Email:    settings.Jira.Email,
			APIToken: settings.Jira.APIToken,
			Logger:   logger,
		})
		if err != nil {
			return nil, invalidSettings("jira resolver", err)
		}
		jiraResolver, err := jira.NewResolver(jira.ResolverOptions{
			Adapter:       adapter,
			BrowseBaseURL: adapter.BaseURL(),
			ProjectKeys:   settings.Jira.ProjectKeys,
			Logger:        logger,
		})
		if err != nil {
			return nil, invalidSettings("jira resolver", err)
		}
		resolvers = append(resolvers, jiraResolver)
	}

	if settings.GitHubEnabled() {
		githubResolver, err := github.NewResolver(github.Options{
			Repository: settings.GitHub.Repository,
			APIURL:     settings.GitHub.APIURL,
			Token:      settings.GitHub.Token,
			Logger:     logger,
		})
		if err != nil {
			return nil, invalidSettings("github resolver", err)
		}
		resolvers = append(resolvers, githubResolver)
	}

	chain := resolver.NewChain(resolvers...)
	logger.Debug("registered issue resolvers", "resolvers", chain.Names())
	return chain, nil
}

// resolveBuildType returns the explicit build type, or looks it up by project
// and build name.
func resolveBuildType(ctx context.Context, source ci.Source, target TargetOptions) (string, error) {
	if buildType := strings.TrimSpace(target.BuildType); buildType != "" {
		return buildType, nil
	}

	project := strings.TrimSpace(target.Project)
	name := strings.TrimSpace(target.BuildName)
	if project == "" || name == "" {
		return "", &TargetError{
			Code:       TargetErrorCodeMissingBuildType,
			ReasonCode: contracts.ReasonCodeBuildTypeUnresolved,
			Message:    fmt.Sprintf("could not resolve project %q and build name %q to a build type", project, name),
			Hint:       "pass --build-type, or both --project and --build-name",
		}
	}

	resolved, err := source.ResolveBuildTypeByProjectAndName(ctx, project, name)
	if err != nil {
		return "", fmt.Errorf("failed to look up build type for project %q and build name %q: %w", project, name, err)
	}
	if resolved == nil || strings.TrimSpace(resolved.ID) == "" {
		return "", &TargetError{
			Code:       TargetErrorCodeBuildTypeUnresolved,
			ReasonCode: contracts.ReasonCodeBuildTypeUnresolved,
			Message:    fmt.Sprintf("no build type named %q in project %q", name, project),
		}
	}
	return resolved.ID, nil
}

func invalidSettings(component string, err error) error {
	return &TargetError{
		Code:       TargetErrorCodeInvalidSettings,
		ReasonCode: contracts.ReasonCodeValidationFailed,
		Message:    "invalid " + component + " settings",
		Err:        err,
	}
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
