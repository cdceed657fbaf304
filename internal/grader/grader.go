// Package grader is the plugin point for per-problem grading and content
// generation scripts. The engine only sees the Grader and Generator
// capability interfaces; how a script is located and executed is an adapter
// concern, so the subprocess runner can be swapped for the sandboxed one (or
// a future WASM runner) without touching the grading pipeline.
package grader

import "context"

// Verdict is what a grading script returns for a flag.
type Verdict struct {
	Correct bool   `json:"correct"`
	Message string `json:"message"`
}

// Content is what a generator script produces for a team: raw (un-rendered)
// description and hint text.
type Content struct {
	Description string `json:"description"`
	Hint        string `json:"hint"`
}

// Grader grades one flag for one team key.
type Grader interface {
	Grade(ctx context.Context, teamKey int64, flag string) (Verdict, error)
}

// Generator produces per-team problem content for one team key.
type Generator interface {
	Generate(ctx context.Context, teamKey int64) (Content, error)
}

// Loader resolves a problem's script (a path relative to the problems root)
// into a Grader or Generator. Resolution happens per call, never cached, so a
// script updated on disk takes effect on the next submission.
type Loader interface {
	Grader(script string) Grader
	Generator(script string) Generator
}
