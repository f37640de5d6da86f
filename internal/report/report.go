// Package report renders a change manifest as an HTML page.
package report

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/pweiskircher/build-changes/internal/fs"
	"github.com/pweiskircher/build-changes/internal/manifest"
)

//go:embed templates/default.html.tmpl
var defaultTemplate string

// pattern: Functional Core

// View is the value templates are executed against. Comment holds the
// zero-changes placeholder and is empty whenever the manifest has changes.
type View struct {
	Manifest manifest.ChangeManifest
	Comment  string
}

func NewView(m manifest.ChangeManifest, zeroChangesComment string) View {
	view := View{Manifest: m}
	if !m.HasChanges() {
		view.Comment = strings.TrimSpace(zeroChangesComment)
	}
	return view
}

// Parse compiles a user template, or the built-in one when source is empty.
func Parse(source string) (*template.Template, error) {
	if strings.TrimSpace(source) == "" {
		source = defaultTemplate
	}
	tmpl, err := template.New("report").Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return tmpl, nil
}

func Render(w io.Writer, tmpl *template.Template, view View) error {
	if tmpl == nil {
		return errors.New("report template is nil")
	}
	if err := tmpl.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// pattern: Imperative Shell

type WriteOptions struct {
	Path               string
	TemplatePath       string
	ZeroChangesComment string
}

// Write renders m to options.Path under the root of files. The template is
// parsed before anything is written so a broken template leaves an existing
// report untouched.
func Write(files *fs.SafeFS, m manifest.ChangeManifest, options WriteOptions) (string, error) {
	if files == nil {
		return "", errors.New("report filesystem is nil")
	}

	source := ""
	if options.TemplatePath != "" {
		raw, err := files.ReadFile(options.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("failed to read report template %s: %w", options.TemplatePath, err)
		}
		source = string(raw)
	}

	tmpl, err := Parse(source)
	if err != nil {
		return "", err
	}

	target, err := files.Resolve(options.Path)
	if err != nil {
		return "", fmt.Errorf("invalid report path %s: %w", options.Path, err)
	}

	view := NewView(m, options.ZeroChangesComment)
	if err := files.WriteAtomic(options.Path, 0o644, func(w io.Writer) error {
		return Render(w, tmpl, view)
	}); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", options.Path, err)
	}

	return target, nil
}
