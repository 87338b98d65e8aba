// Package compiler wraps invocation of the external Tact compiler and the
// heuristic that decides whether its output looks like a genuine bug.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Result carries the raw outcome of one compile attempt.
type Result struct {
	Output    string
	Succeeded bool
	// Path is where the snippet ended up: the snippets directory when the
	// compile succeeded, the work directory otherwise.
	Path string
}

// Gateway persists snippets and runs the external compiler over them. Safe
// for concurrent use as long as every call carries a distinct snippet ID.
type Gateway struct {
	binary      string
	workDir     string
	snippetsDir string
}

func NewGateway(binary, workDir, snippetsDir string) (*Gateway, error) {
	for _, dir := range []string{workDir, snippetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Gateway{binary: binary, workDir: workDir, snippetsDir: snippetsDir}, nil
}

// Compile writes code under the given snippet ID, runs the compiler on it,
// stores the compiler output beside the working copy, and keeps a second
// copy of the snippet in the snippets directory when compilation succeeds.
//
// A non-zero exit is a regular outcome, not an error: Result.Output then
// holds the compiler's stderr. The returned error covers local failures
// only (filesystem trouble, missing binary).
func (g *Gateway) Compile(ctx context.Context, snippetID, code string) (Result, error) {
	workFile := filepath.Join(g.workDir, snippetID+".tact")
	if err := os.WriteFile(workFile, []byte(code), 0o644); err != nil {
		return Result{}, fmt.Errorf("write snippet: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, workFile)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Output: stdout.String(), Succeeded: true, Path: workFile}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result = Result{Output: stderr.String(), Succeeded: false, Path: workFile}
	} else if err != nil {
		return Result{}, fmt.Errorf("run %s: %w", g.binary, err)
	}

	outputFile := filepath.Join(g.workDir, snippetID+".txt")
	if err := os.WriteFile(outputFile, []byte(result.Output), 0o644); err != nil {
		return Result{}, fmt.Errorf("write compiler output: %w", err)
	}

	if result.Succeeded {
		kept := filepath.Join(g.snippetsDir, snippetID+".tact")
		if err := os.WriteFile(kept, []byte(code), 0o644); err != nil {
			return Result{}, fmt.Errorf("keep snippet: %w", err)
		}
		result.Path = kept
	}

	return result, nil
}
