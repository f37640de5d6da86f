// pattern: Functional Core
package config

import (
	"os"
	"strings"

	"github.com/pweiskircher/build-changes/internal/contracts"
)

const (
	EnvTeamCityURL         = "TEAMCITY_URL"
	EnvTeamCityToken       = "TEAMCITY_TOKEN"
	EnvBuildkiteAPIToken   = "BUILDKITE_API_TOKEN"
	EnvBuildkiteOrg        = "BUILDKITE_ORGANIZATION"
	EnvJiraAPIToken        = "JIRA_API_TOKEN"
	EnvJiraBaseURL         = "JIRA_BASE_URL"
	EnvJiraEmail           = "JIRA_EMAIL"
	EnvGitHubToken         = "GITHUB_TOKEN"
	EnvGitHubRepository    = "GITHUB_REPOSITORY"
	EnvZeroChangesComment  = "BUILD_CHANGES_ZERO_CHANGES_COMMENT"
	EnvBuildChangesCIKind  = "BUILD_CHANGES_CI"
	EnvBuildChangesRangeBy = "BUILD_CHANGES_RANGE_BY"
)

// RuntimeFlags carries the raw flag values. ReportPath is nil when the flag was not
// given; a pointer to "" disables the report.
type RuntimeFlags struct {
	CIProvider         string
	ServerURL          string
	BuildkiteOrg       string
	RangeBy            string
	JiraBaseURL        string
	JiraEmail          string
	JiraProjectKeys    []string
	GitHubRepository   string
	ReportPath         *string
	ReportTemplate     string
	ZeroChangesComment string
}

type Environment struct {
	TeamCityURL        string
	TeamCityToken      string
	BuildkiteAPIToken  string
	BuildkiteOrg       string
	JiraAPIToken       string
	JiraBaseURL        string
	JiraEmail          string
	GitHubToken        string
	GitHubRepository   string
	ZeroChangesComment string
	CIProvider         string
	RangeBy            string
}

type ResolveOptions struct {
	RequireCI bool
}

type RuntimeSettings struct {
	CIProvider contracts.CIProvider
	RangeBy    string
	TeamCity   TeamCitySettings
	Buildkite  BuildkiteSettings
	Jira       JiraSettings
	GitHub     GitHubSettings
	Report     ReportSettings
}

type TeamCitySettings struct {
	ServerURL string
	Token     string
}

type BuildkiteSettings struct {
	Organization string
	APIToken     string
}

type JiraSettings struct {
	BaseURL     string
	Email       string
	APIToken    string
	ProjectKeys []string
}

type GitHubSettings struct {
	Repository string
	APIURL     string
	Token      string
}

// ReportSettings has an empty Path when the HTML report is disabled.
type ReportSettings struct {
	Path               string
	Template           string
	ZeroChangesComment string
}

// JiraEnabled reports whether enough Jira settings are present to register the resolver.
func (settings RuntimeSettings) JiraEnabled() bool {
	return settings.Jira.BaseURL != "" && settings.Jira.Email != "" && settings.Jira.APIToken != ""
}

func (settings RuntimeSettings) GitHubEnabled() bool {
	return settings.GitHub.Repository != ""
}

// Resolve applies flag > env > config precedence. Secrets come from env only.
func Resolve(config contracts.Config, flags RuntimeFlags, env Environment, options ResolveOptions) (RuntimeSettings, error) {
	if err := contracts.ValidateConfig(config); err != nil {
		return RuntimeSettings{}, &ResolveError{
			Code:    ResolveErrorCodeInvalidConfig,
			Message: "configuration is invalid",
			Err:     err,
		}
	}

	if err := rejectBlankFlags(flags); err != nil {
		return RuntimeSettings{}, err
	}

	provider := strings.ToLower(firstNonEmpty(flags.CIProvider, env.CIProvider, config.CI.Provider, string(contracts.DefaultCIProvider)))
	if !contracts.IsSupportedCIProvider(provider) {
		return RuntimeSettings{}, &ResolveError{
			Code:    ResolveErrorCodeUnknownProvider,
			Setting: "--ci",
			Message: "unsupported CI provider " + provider + " (expected teamcity or buildkite)",
		}
	}

	rangeBy := strings.ToLower(firstNonEmpty(flags.RangeBy, env.RangeBy, config.CI.RangeBy, contracts.DefaultRangeBy))
	if !containsString(contracts.RangeByValues, rangeBy) {
		return RuntimeSettings{}, &ResolveError{
			Code:    ResolveErrorCodeInvalidValue,
			Setting: "--range-by",
			Message: "must be one of: number, id",
		}
	}

	settings := RuntimeSettings{
		CIProvider: contracts.CIProvider(provider),
		RangeBy:    rangeBy,
		TeamCity: TeamCitySettings{
			ServerURL: strings.TrimRight(firstNonEmpty(flags.ServerURL, env.TeamCityURL, config.CI.ServerURL), "/"),
			Token:     strings.TrimSpace(env.TeamCityToken),
		},
		Buildkite: BuildkiteSettings{
			Organization: firstNonEmpty(flags.BuildkiteOrg, env.BuildkiteOrg, config.CI.BuildkiteOrganization),
			APIToken:     strings.TrimSpace(env.BuildkiteAPIToken),
		},
		Jira: JiraSettings{
			BaseURL:     firstNonEmpty(flags.JiraBaseURL, env.JiraBaseURL, config.Jira.BaseURL),
			Email:       firstNonEmpty(flags.JiraEmail, env.JiraEmail, config.Jira.Email),
			APIToken:    strings.TrimSpace(env.JiraAPIToken),
			ProjectKeys: resolveProjectKeys(flags.JiraProjectKeys, config.Jira.ProjectKeys),
		},
		GitHub: GitHubSettings{
			Repository: firstNonEmpty(flags.GitHubRepository, env.GitHubRepository, config.GitHub.Repository),
			APIURL:     strings.TrimRight(firstNonEmpty(config.GitHub.APIURL, contracts.DefaultGitHubAPIURL), "/"),
			Token:      strings.TrimSpace(env.GitHubToken),
		},
		Report: ReportSettings{
			Path:               resolveReportPath(flags.ReportPath, config.Report),
			Template:           firstNonEmpty(flags.ReportTemplate, config.Report.Template),
			ZeroChangesComment: firstNonEmpty(flags.ZeroChangesComment, env.ZeroChangesComment, config.Report.ZeroChangesComment),
		},
	}

	if repo := settings.GitHub.Repository; repo != "" && !contracts.GitHubRepoPattern.MatchString(repo) {
		return RuntimeSettings{}, &ResolveError{
			Code:    ResolveErrorCodeInvalidValue,
			Setting: "--github-repo",
			Message: repo + " is not in owner/repo form",
		}
	}
	for _, key := range settings.Jira.ProjectKeys {
		if !contracts.JiraProjectKeyPattern.MatchString(key) {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeInvalidValue,
				Setting: "--jira-project",
				Message: key + " is not a Jira project key",
			}
		}
	}

	if options.RequireCI {
		if err := requireCISettings(settings); err != nil {
			return RuntimeSettings{}, err
		}
	}

	return settings, nil
}

func EnvironmentFromOS() Environment {
	return EnvironmentFromLookup(os.LookupEnv)
}

func EnvironmentFromLookup(lookup func(string) (string, bool)) Environment {
	if lookup == nil {
		return Environment{}
	}

	return Environment{
		TeamCityURL:        lookupTrimmed(lookup, EnvTeamCityURL),
		TeamCityToken:      lookupTrimmed(lookup, EnvTeamCityToken),
		BuildkiteAPIToken:  lookupTrimmed(lookup, EnvBuildkiteAPIToken),
		BuildkiteOrg:       lookupTrimmed(lookup, EnvBuildkiteOrg),
		JiraAPIToken:       lookupTrimmed(lookup, EnvJiraAPIToken),
		JiraBaseURL:        lookupTrimmed(lookup, EnvJiraBaseURL),
		JiraEmail:          lookupTrimmed(lookup, EnvJiraEmail),
		GitHubToken:        lookupTrimmed(lookup, EnvGitHubToken),
		GitHubRepository:   lookupTrimmed(lookup, EnvGitHubRepository),
		ZeroChangesComment: lookupTrimmed(lookup, EnvZeroChangesComment),
		CIProvider:         lookupTrimmed(lookup, EnvBuildChangesCIKind),
		RangeBy:            lookupTrimmed(lookup, EnvBuildChangesRangeBy),
	}
}

func requireCISettings(settings RuntimeSettings) error {
	switch settings.CIProvider {
	case contracts.CIProviderBuildkite:
		if settings.Buildkite.Organization == "" {
			return &ResolveError{
				Code:    ResolveErrorCodeMissingOrg,
				Setting: "--buildkite-org or " + EnvBuildkiteOrg,
				Message: "required for the buildkite provider",
			}
		}
		if settings.Buildkite.APIToken == "" {
			return &ResolveError{
				Code:    ResolveErrorCodeMissingToken,
				Setting: EnvBuildkiteAPIToken,
				Message: "required for the buildkite provider",
			}
		}
	default:
		if settings.TeamCity.ServerURL == "" {
			return &ResolveError{
				Code:    ResolveErrorCodeMissingServer,
				Setting: "--server or " + EnvTeamCityURL,
				Message: "required for the teamcity provider",
			}
		}
	}
	return nil
}

func rejectBlankFlags(flags RuntimeFlags) error {
	named := []struct {
		name  string
		value string
	}{
		{"--ci", flags.CIProvider},
		{"--server", flags.ServerURL},
		{"--buildkite-org", flags.BuildkiteOrg},
		{"--range-by", flags.RangeBy},
		{"--jira-url", flags.JiraBaseURL},
		{"--jira-email", flags.JiraEmail},
		{"--github-repo", flags.GitHubRepository},
		{"--template", flags.ReportTemplate},
	}
	for _, flag := range named {
		if flag.value != "" && strings.TrimSpace(flag.value) == "" {
			return &ResolveError{
				Code:    ResolveErrorCodeInvalidValue,
				Setting: flag.name,
				Message: "must not be only whitespace",
			}
		}
	}
	return nil
}

func resolveReportPath(flagValue *string, report contracts.ReportConfig) string {
	if flagValue != nil {
		return strings.TrimSpace(*flagValue)
	}
	if report.Disabled {
		return ""
	}
	return firstNonEmpty(report.Path, contracts.DefaultReportPath)
}

func resolveProjectKeys(flagKeys []string, configKeys []string) []string {
	source := configKeys
	if len(flagKeys) > 0 {
		source = flagKeys
	}

	keys := make([]string, 0, len(source))
	seen := make(map[string]struct{}, len(source))
	for _, key := range source {
		trimmed := strings.ToUpper(strings.TrimSpace(key))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		keys = append(keys, trimmed)
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func containsString(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}

func lookupTrimmed(lookup func(string) (string, bool), key string) string {
	value, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
