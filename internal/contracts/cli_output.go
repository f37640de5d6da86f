package contracts

import "errors"

const EnvelopeVersionV1 = "1"

type OutputMode string

const (
	OutputModeHuman OutputMode = "human"
	OutputModeJSON  OutputMode = "json"
	OutputModeYAML  OutputMode = "yaml"
)

type StreamContract struct {
	StdoutRule string
	StderrRule string
}

var OutputStreamContracts = map[OutputMode]StreamContract{
	OutputModeJSON: {
		StdoutRule: "stdout MUST contain exactly one JSON envelope object and no extra prose",
		StderrRule: "stderr MAY contain diagnostics/logs and MUST NOT contain envelope fragments",
	},
	OutputModeYAML: {
		StdoutRule: "stdout MUST contain exactly one YAML envelope document and no extra prose",
		StderrRule: "stderr MAY contain diagnostics/logs and MUST NOT contain envelope fragments",
	},
	OutputModeHuman: {
		StdoutRule: "stdout SHOULD contain human-readable primary output",
		StderrRule: "stderr SHOULD contain warnings/errors/diagnostics/logs",
	},
}

type ExitCode int

const (
	ExitCodeSuccess       ExitCode = 0
	ExitCodeFatal         ExitCode = 1
	ExitCodeConfiguration ExitCode = 2
)

// ExitCodeMeaning freezes the CLI matrix semantics.
var ExitCodeMeaning = map[ExitCode]string{
	ExitCodeSuccess:       "success, including empty or truncated ranges",
	ExitCodeFatal:         "fatal command failure (transport/auth/remote lookup/render)",
	ExitCodeConfiguration: "insufficient or invalid targeting information (build type, range anchors, settings)",
}

type CommandEnvelope struct {
	EnvelopeVersion string          `json:"envelope_version" yaml:"envelope_version"`
	Command         CommandMeta     `json:"command" yaml:"command"`
	Counts          AggregateCounts `json:"counts" yaml:"counts"`
	Data            any             `json:"data,omitempty" yaml:"data,omitempty"`
}

type CommandMeta struct {
	Name       string `json:"name" yaml:"name"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
}

type AggregateCounts struct {
	Builds  int `json:"builds" yaml:"builds"`
	Changes int `json:"changes" yaml:"changes"`
	Issues  int `json:"issues" yaml:"issues"`
	Errors  int `json:"errors" yaml:"errors"`
}

func ValidateEnvelopeBasics(env CommandEnvelope) error {
	if env.EnvelopeVersion != EnvelopeVersionV1 {
		return errors.New("unsupported envelope_version")
	}
	if env.Command.Name == "" {
		return errors.New("command name is required")
	}
	return nil
}

func ResolveExitCode(fatalErr bool, configurationErr bool) ExitCode {
	if configurationErr {
		return ExitCodeConfiguration
	}
	if fatalErr {
		return ExitCodeFatal
	}
	return ExitCodeSuccess
}
