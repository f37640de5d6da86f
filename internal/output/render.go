package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pweiskircher/build-changes/internal/contracts"
)

// pattern: Imperative Shell

func Write(mode contracts.OutputMode, stdout io.Writer, stderr io.Writer, report Report, duration time.Duration, fatalErr error) error {
	switch mode {
	case contracts.OutputModeJSON, contracts.OutputModeYAML:
		env, err := BuildEnvelope(report, duration)
		if err != nil {
			return err
		}
		if fatalErr != nil {
			env.Counts.Errors = 1
			env.Data = nil
		}

		if mode == contracts.OutputModeJSON {
			encoder := json.NewEncoder(stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(env); err != nil {
				return fmt.Errorf("failed to write JSON envelope: %w", err)
			}
		} else {
			encoder := yaml.NewEncoder(stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(env); err != nil {
				return fmt.Errorf("failed to write YAML envelope: %w", err)
			}
			if err := encoder.Close(); err != nil {
				return fmt.Errorf("failed to write YAML envelope: %w", err)
			}
		}

		if fatalErr != nil {
			if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
				return fmt.Errorf("failed to write diagnostics: %w", err)
			}
		}
		return nil
	case contracts.OutputModeHuman:
		if fatalErr != nil {
			if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
				return fmt.Errorf("failed to write diagnostics: %w", err)
			}
			return nil
		}
		if err := writeHuman(stdout, report); err != nil {
			return fmt.Errorf("failed to write human output: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output mode %q", mode)
	}
}

func FormatDiagnostic(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "failed to execute command"
	}
	if strings.HasPrefix(msg, "failed to ") {
		return msg
	}
	return "failed to execute command: " + msg
}

func writeHuman(w io.Writer, report Report) error {
	out := &lineWriter{w: w}
	counts := report.Counts()

	if report.Manifest == nil {
		out.printf("%s: builds=%d\n", report.CommandName, counts.Builds)
		for _, build := range report.Builds {
			out.printf("- %s #%s %s\n", build.ID, build.Number, build.Status)
		}
		return out.err
	}

	m := report.Manifest
	out.printf("%s: build_type=%s from=%s to=%s builds=%d changes=%d issues=%d\n",
		report.CommandName, m.BuildConfiguration, m.FromVersion, m.ToVersion,
		counts.Builds, counts.Changes, counts.Issues)
	if m.ReferenceBuildConfiguration != "" {
		out.printf("reference: %s\n", m.ReferenceBuildConfiguration)
	}

	out.printf("changes:\n")
	if !m.HasChanges() {
		if comment := report.Comment(); comment != "" {
			out.printf("  %s\n", comment)
		} else {
			out.printf("  (none)\n")
		}
	}
	for _, change := range m.ChangeDetails {
		out.printf("- %s %s: %s\n", shortRevision(change.Version), change.Username, firstLine(change.Comment))
	}

	if len(m.IssueDetails) > 0 {
		out.printf("issues:\n")
		for _, issue := range m.IssueDetails {
			status := ""
			if issue.Status != "" {
				status = " [" + issue.Status + "]"
			}
			out.printf("- %s %s%s %s\n", issue.Source, issue.ID, status, issue.Summary)
		}
	}

	if report.ReportPath != "" {
		out.printf("report: %s\n", report.ReportPath)
	}
	return out.err
}

type lineWriter struct {
	w   io.Writer
	err error
}

func (l *lineWriter) printf(format string, args ...any) {
	if l.err != nil {
		return
	}
	_, l.err = fmt.Fprintf(l.w, format, args...)
}

func shortRevision(version string) string {
	if len(version) > 10 {
		return version[:10]
	}
	return version
}

func firstLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if index := strings.IndexAny(trimmed, "\r\n"); index >= 0 {
		return strings.TrimSpace(trimmed[:index])
	}
	return trimmed
}
