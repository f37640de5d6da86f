// pattern: Functional Core
package contracts

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// ConfigFilePath is the canonical config location under the working directory.
	ConfigFilePath = ".build-changes.json"

	// ConfigSchemaVersionV1 is the current supported config schema version.
	ConfigSchemaVersionV1 = "1"
)

// SupportedConfigSchemaVersions is ordered for deterministic mismatch messaging.
var SupportedConfigSchemaVersions = []string{ConfigSchemaVersionV1}

var (
	JiraIssueKeyPattern   = regexp.MustCompile(`^[A-Z][A-Z0-9]+-[0-9]+$`)
	JiraProjectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]+$`)
	GitHubRepoPattern     = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// CIProvider names a supported CI server flavour.
type CIProvider string

const (
	CIProviderTeamCity  CIProvider = "teamcity"
	CIProviderBuildkite CIProvider = "buildkite"
)

var SupportedCIProviders = []CIProvider{CIProviderTeamCity, CIProviderBuildkite}

// RangeByValues are the accepted range comparator names.
var RangeByValues = []string{"number", "id"}

// Config models .build-changes.json. Secrets are env-only by contract.
type Config struct {
	ConfigVersion string       `json:"config_version"`
	CI            CIConfig     `json:"ci,omitempty"`
	Jira          JiraConfig   `json:"jira,omitempty"`
	GitHub        GitHubConfig `json:"github,omitempty"`
	Report        ReportConfig `json:"report,omitempty"`
}

type CIConfig struct {
	Provider              string `json:"provider,omitempty"`
	ServerURL             string `json:"server_url,omitempty"`
	BuildkiteOrganization string `json:"buildkite_organization,omitempty"`
	RangeBy               string `json:"range_by,omitempty"`
}

// JiraConfig contains non-secret Jira defaults. ProjectKeys restricts which
// issue keys the Jira resolver claims; empty means any key-shaped ID.
type JiraConfig struct {
	BaseURL     string   `json:"base_url,omitempty"`
	Email       string   `json:"email,omitempty"`
	ProjectKeys []string `json:"project_keys,omitempty"`
}

type GitHubConfig struct {
	Repository string `json:"repository,omitempty"`
	APIURL     string `json:"api_url,omitempty"`
}

// ReportConfig controls the HTML report written after aggregation.
type ReportConfig struct {
	Path               string `json:"path,omitempty"`
	Disabled           bool   `json:"disabled,omitempty"`
	Template           string `json:"template,omitempty"`
	ZeroChangesComment string `json:"zero_changes_comment,omitempty"`
}

// ConfigErrorCode classifies typed config contract failures.
type ConfigErrorCode string

const (
	ConfigErrorCodeVersionMismatch  ConfigErrorCode = "config_version_mismatch"
	ConfigErrorCodeValidationFailed ConfigErrorCode = "config_validation_failed"
)

// ConfigContractError is implemented by all typed config contract errors.
type ConfigContractError interface {
	error
	Code() ConfigErrorCode
}

// ConfigValidationCode classifies deterministic validation failures.
type ConfigValidationCode string

const (
	ConfigValidationCodeRequired     ConfigValidationCode = "required"
	ConfigValidationCodeInvalidValue ConfigValidationCode = "invalid_value"
)

// ConfigValidationIssue identifies one validation failure.
type ConfigValidationIssue struct {
	Path    string
	Code    ConfigValidationCode
	Message string
}

// ConfigValidationError is returned when schema/content validation fails.
type ConfigValidationError struct {
	Issues []ConfigValidationIssue
}

func (e ConfigValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid configuration"
	}

	first := e.Issues[0]
	return fmt.Sprintf("invalid configuration: %s (%s: %s)", first.Path, first.Code, first.Message)
}

// Code returns a stable typed error code.
func (ConfigValidationError) Code() ConfigErrorCode {
	return ConfigErrorCodeValidationFailed
}

// ConfigVersionMismatchError is returned when config_version is unsupported.
type ConfigVersionMismatchError struct {
	Found     string
	Supported []string
}

func (e ConfigVersionMismatchError) Error() string {
	return fmt.Sprintf(
		"invalid configuration: unsupported config_version %q; supported versions: %s",
		e.Found,
		strings.Join(e.Supported, ", "),
	)
}

// Code returns a stable typed error code.
func (ConfigVersionMismatchError) Code() ConfigErrorCode {
	return ConfigErrorCodeVersionMismatch
}

// ValidateConfig enforces the schema contract with deterministic issue ordering.
func ValidateConfig(config Config) error {
	issues := make([]ConfigValidationIssue, 0)

	version := strings.TrimSpace(config.ConfigVersion)
	if version == "" {
		issues = appendIssue(issues, "config_version", ConfigValidationCodeRequired, "must be set")
	} else if !isSupportedVersion(version) {
		return ConfigVersionMismatchError{
			Found:     version,
			Supported: append([]string(nil), SupportedConfigSchemaVersions...),
		}
	}

	if provider := strings.TrimSpace(config.CI.Provider); provider != "" && !IsSupportedCIProvider(provider) {
		issues = appendIssue(issues, "ci.provider", ConfigValidationCodeInvalidValue, "must be one of: teamcity, buildkite")
	}
	issues = append(issues, validateURL("ci.server_url", config.CI.ServerURL)...)
	if rangeBy := strings.TrimSpace(config.CI.RangeBy); rangeBy != "" && !containsFold(RangeByValues, rangeBy) {
		issues = appendIssue(issues, "ci.range_by", ConfigValidationCodeInvalidValue, "must be one of: number, id")
	}

	issues = append(issues, validateURL("jira.base_url", config.Jira.BaseURL)...)
	for i, key := range config.Jira.ProjectKeys {
		if !JiraProjectKeyPattern.MatchString(strings.TrimSpace(key)) {
			issues = appendIssue(issues, fmt.Sprintf("jira.project_keys[%d]", i), ConfigValidationCodeInvalidValue, "must be an upper-case Jira project key")
		}
	}

	if repo := strings.TrimSpace(config.GitHub.Repository); repo != "" && !GitHubRepoPattern.MatchString(repo) {
		issues = appendIssue(issues, "github.repository", ConfigValidationCodeInvalidValue, "must be in owner/repo form")
	}
	issues = append(issues, validateURL("github.api_url", config.GitHub.APIURL)...)

	if config.Report.Path != "" {
		reportPath := strings.TrimSpace(config.Report.Path)
		if reportPath == "" {
			issues = appendIssue(issues, "report.path", ConfigValidationCodeInvalidValue, "must not be only whitespace")
		} else if filepath.IsAbs(reportPath) {
			issues = appendIssue(issues, "report.path", ConfigValidationCodeInvalidValue, "must be relative to the working directory")
		}
	}

	if len(issues) == 0 {
		return nil
	}

	sortValidationIssues(issues)
	return ConfigValidationError{Issues: issues}
}

func IsSupportedCIProvider(provider string) bool {
	for _, supported := range SupportedCIProviders {
		if strings.EqualFold(string(supported), strings.TrimSpace(provider)) {
			return true
		}
	}
	return false
}

func validateURL(path string, raw string) []ConfigValidationIssue {
	trimmed := strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if trimmed == "" {
		return []ConfigValidationIssue{{Path: path, Code: ConfigValidationCodeInvalidValue, Message: "must not be only whitespace"}}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return []ConfigValidationIssue{{Path: path, Code: ConfigValidationCodeInvalidValue, Message: "must be an absolute URL with scheme and host"}}
	}
	return nil
}

func appendIssue(issues []ConfigValidationIssue, path string, code ConfigValidationCode, message string) []ConfigValidationIssue {
	return append(issues, ConfigValidationIssue{Path: path, Code: code, Message: message})
}

func sortValidationIssues(issues []ConfigValidationIssue) {
	sort.SliceStable(issues, func(i int, j int) bool {
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		if issues[i].Code != issues[j].Code {
			return issues[i].Code < issues[j].Code
		}
		return issues[i].Message < issues[j].Message
	})
}

func containsFold(values []string, candidate string) bool {
	for _, value := range values {
		if strings.EqualFold(value, strings.TrimSpace(candidate)) {
			return true
		}
	}
	return false
}

func isSupportedVersion(version string) bool {
	for _, supported := range SupportedConfigSchemaVersions {
		if version == supported {
			return true
		}
	}
	return false
}
