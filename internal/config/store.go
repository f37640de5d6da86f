// pattern: Imperative Shell
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pweiskircher/build-changes/internal/contracts"
)

func Read(path string) (contracts.Config, error) {
	resolvedPath := resolvePath(path)
	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return contracts.Config{}, &Error{Code: ErrorCodeReadFailed, Path: resolvedPath, Err: err}
	}

	config, err := decode(raw)
	if err != nil {
		line, column := errorPosition(raw, err)
		return contracts.Config{}, &Error{Code: ErrorCodeParseFailed, Path: resolvedPath, Line: line, Column: column, Err: err}
	}

	if err := contracts.ValidateConfig(config); err != nil {
		return contracts.Config{}, &Error{Code: ErrorCodeValidationFailed, Path: resolvedPath, Err: err}
	}

	return config, nil
}

// ReadOptional behaves like Read but returns an empty v1 config when the file does
// not exist. The boolean reports whether a file was loaded.
func ReadOptional(path string) (contracts.Config, bool, error) {
	config, err := Read(path)
	if err == nil {
		return config, true, nil
	}
	var configErr *Error
	if errors.As(err, &configErr) && configErr.Missing() {
		return contracts.Config{ConfigVersion: contracts.ConfigSchemaVersionV1}, false, nil
	}
	return contracts.Config{}, false, err
}

func decode(raw []byte) (contracts.Config, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var config contracts.Config
	if err := decoder.Decode(&config); err != nil {
		return contracts.Config{}, fmt.Errorf("failed to decode config JSON: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return contracts.Config{}, errors.New("unexpected trailing JSON content")
		}
		return contracts.Config{}, fmt.Errorf("failed to decode trailing config JSON content: %w", err)
	}

	return config, nil
}

// errorPosition turns the byte offset carried by JSON syntax and type errors
// into a 1-based line and column. Other decode errors have no position.
func errorPosition(raw []byte, err error) (int, int) {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return 0, 0
	}
	if offset > int64(len(raw)) {
		offset = int64(len(raw))
	}

	consumed := raw[:offset]
	line := bytes.Count(consumed, []byte("\n")) + 1
	column := len(consumed) - bytes.LastIndexByte(consumed, '\n')
	return line, column
}

func resolvePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return contracts.ConfigFilePath
	}
	return trimmed
}
