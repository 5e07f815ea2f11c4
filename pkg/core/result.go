// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"encoding/json"
	"fmt"
)

// ResultKind discriminates the Result variants.
type ResultKind string

const (
	ResultText      ResultKind = "text"
	ResultError     ResultKind = "error"
	ResultArtifact  ResultKind = "artifact"
	ResultArtifacts ResultKind = "artifacts"
)

// Result is the outcome of a tool call. Every outcome the LLM loop can
// observe is expressible as a Result: free text, an error, or one or more
// produced artifacts. Gating rejections are Text results so the model can
// read the guidance and recover.
type Result struct {
	Kind      ResultKind
	Text      string
	Err       error
	Artifacts []any
}

// Text builds a text result.
func Text(s string) Result {
	return Result{Kind: ResultText, Text: s}
}

// Textf builds a formatted text result.
func Textf(format string, args ...any) Result {
	return Text(fmt.Sprintf(format, args...))
}

// Error builds an error result.
func Error(err error) Result {
	return Result{Kind: ResultError, Err: err}
}

// Errorf builds a formatted error result.
func Errorf(format string, args ...any) Result {
	return Error(fmt.Errorf(format, args...))
}

// Artifact builds a single-artifact result.
func Artifact(v any) Result {
	return Result{Kind: ResultArtifact, Artifacts: []any{v}}
}

// Artifacts builds a multi-artifact result.
func Artifacts(vs ...any) Result {
	return Result{Kind: ResultArtifacts, Artifacts: vs}
}

// Final assembles an orchestrator's return value from the loop's closing
// text and the artifacts recorded during the run: text-only, single-artifact
// or multi-artifact depending on count.
func Final(text string, artifacts []any) Result {
	switch len(artifacts) {
	case 0:
		return Text(text)
	case 1:
		return Result{Kind: ResultArtifact, Text: text, Artifacts: artifacts}
	default:
		return Result{Kind: ResultArtifacts, Text: text, Artifacts: artifacts}
	}
}

// IsError reports whether the result is the error variant.
func (r Result) IsError() bool { return r.Kind == ResultError }

// Payload renders the string fed back to the LLM as the tool message.
func (r Result) Payload() string {
	switch r.Kind {
	case ResultError:
		if r.Err != nil {
			return "Error: " + r.Err.Error()
		}
		return "Error"
	case ResultArtifact, ResultArtifacts:
		if r.Text != "" {
			return r.Text
		}
		if encoded, err := json.Marshal(r.Artifacts); err == nil {
			return string(encoded)
		}
		return fmt.Sprint(r.Artifacts)
	default:
		return r.Text
	}
}
