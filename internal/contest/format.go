package contest

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PACTF/pactf/internal/database/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// ProblemView is a problem as presented to a team: static HTML as stored, or
// content generated per-team and rendered on the fly.
type ProblemView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Points          int    `json:"points"`
	DescriptionHTML string `json:"description_html"`
	HintHTML        string `json:"hint_html"`

	// Unavailable marks a dynamic problem whose generator failed. The rest of
	// the problem list still renders.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Raw HTML in problem text is left to goldmark's default policy, which
// neutralizes it instead of passing it through.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var staticDirective = regexp.MustCompile(
	`\{%\s*ctflexstatic\s+(?:"([^"]+)"|'([^']+)')\s*%\}`)

// FormatProblem renders one problem for one team. Static problems return the
// pre-rendered HTML stored at import time; dynamic problems invoke the
// generator script with the team's opaque key.
func (e *Engine) FormatProblem(team *models.Team, problem *models.Problem) ProblemView {
	view := ProblemView{
		ID:     problem.ID,
		Name:   problem.Name,
		Points: problem.Points,
	}

	if problem.Generator == "" {
		view.DescriptionHTML = problem.DescriptionHTML
		view.HintHTML = problem.HintHTML
		return view
	}

	content, err := e.scripts.Generator(problem.Generator).Generate(
		context.Background(), e.TeamKey(team.ID))
	if err != nil {
		zap.S().Errorw("generator script fault",
			"problem", problem.ID, "script", problem.Generator,
			"team", team.ID, "error", err)
		view.Unavailable = true
		view.DescriptionHTML = "<p>This problem is temporarily unavailable.</p>"
		return view
	}

	desc, err := e.renderContent(content.Description, problem.ID)
	if err == nil {
		view.DescriptionHTML = desc
		view.HintHTML, err = e.renderContent(content.Hint, problem.ID)
	}
	if err != nil {
		zap.S().Errorw("failed to render generated content",
			"problem", problem.ID, "error", err)
		view.Unavailable = true
		view.DescriptionHTML = "<p>This problem is temporarily unavailable.</p>"
		view.HintHTML = ""
	}
	return view
}

// renderContent rewrites asset directives and converts the result from
// markdown to HTML. Rewriting happens first so directive output is linked,
// not rendered as literal text.
func (e *Engine) renderContent(raw, problemID string) (string, error) {
	linked := e.LinkStatic(raw, problemID)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(linked), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LinkStatic rewrites {% ctflexstatic "name" %} directives into URLs under
// the problem's static-asset namespace.
func (e *Engine) LinkStatic(text, problemID string) string {
	return staticDirective.ReplaceAllStringFunc(text, func(match string) string {
		groups := staticDirective.FindStringSubmatch(match)
		basename := groups[1]
		if basename == "" {
			basename = groups[2]
		}
		return fmt.Sprintf("%s/%s/%s", e.cfg.Problems.StaticURL, problemID, basename)
	})
}
