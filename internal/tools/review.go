package tools

import (
	"context"
	"fmt"
	"strings"
)

// Code-review tools: a heuristic static-analysis toolset used by the
// seeded review workflow. They operate on the "code" field and cooperate
// through "functions", "issues", "suggestions" and "quality_score".

// RegisterReviewTools registers the code-review toolset.
func RegisterReviewTools(reg *Registry) error {
	reviewers := []Tool{
		extractFunctionsTool(),
		checkComplexityTool(),
		detectIssuesTool(),
		calculateQualityTool(),
		suggestImprovementsTool(),
		applySuggestionsTool(),
	}
	for _, t := range reviewers {
		if err := reg.Register(t, false); err != nil {
			return err
		}
	}
	return nil
}

// extractFunctionsTool scans the code for function definitions and
// records their names and line spans under "functions".
func extractFunctionsTool() Tool {
	return NewTool("extract_functions", "List function definitions found in the code",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			code, _ := next["code"].(string)

			var functions []any
			lines := strings.Split(code, "\n")
			for i, line := range lines {
				name, ok := functionName(line)
				if !ok {
					continue
				}
				functions = append(functions, map[string]any{
					"name":  name,
					"line":  i + 1,
					"lines": functionSpan(lines, i),
				})
			}
			if functions == nil {
				functions = []any{}
			}
			next["functions"] = functions
			return next, nil
		})
}

// checkComplexityTool flags functions whose bodies are long or deeply
// nested. It starts a fresh "issues" list; each review pass recomputes
// findings from the current code rather than accumulating stale ones.
func checkComplexityTool() Tool {
	return NewTool("check_complexity", "Flag long or deeply nested functions",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			issues := []any{}

			functions, _ := next["functions"].([]any)
			for _, f := range functions {
				fn, ok := f.(map[string]any)
				if !ok {
					continue
				}
				span, _ := toNumber(fn["lines"])
				if span > 30 {
					issues = append(issues, fmt.Sprintf("function %v spans %.0f lines, consider splitting", fn["name"], span))
				}
			}

			code, _ := next["code"].(string)
			if depth := maxIndentDepth(code); depth > 4 {
				issues = append(issues, fmt.Sprintf("nesting depth %d exceeds 4, flatten control flow", depth))
			}

			next["issues"] = issues
			return next, nil
		})
}

// detectIssuesTool runs line-level lint heuristics over the code and
// appends findings to "issues".
func detectIssuesTool() Tool {
	return NewTool("detect_issues", "Run line-level lint heuristics over the code",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			issues := issueList(next)

			code, _ := next["code"].(string)
			for i, line := range strings.Split(code, "\n") {
				trimmed := strings.TrimSpace(line)
				switch {
				case len(line) > 120:
					issues = append(issues, fmt.Sprintf("line %d exceeds 120 characters", i+1))
				case strings.Contains(trimmed, "TODO"), strings.Contains(trimmed, "FIXME"):
					issues = append(issues, fmt.Sprintf("line %d carries an unresolved marker", i+1))
				case strings.Contains(trimmed, "print("):
					issues = append(issues, fmt.Sprintf("line %d uses print instead of a logger", i+1))
				}
			}

			next["issues"] = issues
			return next, nil
		})
}

// calculateQualityTool folds the issue count into a 0-10 quality score.
func calculateQualityTool() Tool {
	return NewTool("calculate_quality", "Fold the issue count into a 0-10 quality score",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			issues := issueList(next)
			score := 10 - 2*len(issues)
			if score < 0 {
				score = 0
			}
			next["quality_score"] = score
			return next, nil
		})
}

// suggestImprovementsTool turns each open issue into a suggestion.
func suggestImprovementsTool() Tool {
	return NewTool("suggest_improvements", "Turn open issues into actionable suggestions",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			issues := issueList(next)

			suggestions := make([]any, 0, len(issues))
			for _, issue := range issues {
				suggestions = append(suggestions, fmt.Sprintf("resolve: %v", issue))
			}
			next["suggestions"] = suggestions
			return next, nil
		})
}

// applySuggestionsTool rewrites the code by dropping the lines that
// triggered line-level findings. Complexity findings need a human, so
// they survive the pass. Records the revision count.
func applySuggestionsTool() Tool {
	return NewTool("apply_suggestions", "Apply pending suggestions to the code",
		func(ctx context.Context, state map[string]any) (map[string]any, error) {
			next := cloneState(state)
			code, _ := next["code"].(string)

			var kept []string
			for _, line := range strings.Split(code, "\n") {
				trimmed := strings.TrimSpace(line)
				if len(line) > 120 ||
					strings.Contains(trimmed, "TODO") ||
					strings.Contains(trimmed, "FIXME") ||
					strings.Contains(trimmed, "print(") {
					continue
				}
				kept = append(kept, line)
			}
			next["code"] = strings.Join(kept, "\n")
			next["suggestions"] = []any{}

			revisions, _ := toNumber(next["revisions"])
			next["revisions"] = revisions + 1
			return next, nil
		})
}

func issueList(state map[string]any) []any {
	issues, _ := state["issues"].([]any)
	if issues == nil {
		return []any{}
	}
	return issues
}

// functionName recognizes common function-definition shapes across the
// languages the review workflow is pointed at.
func functionName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"func ", "def ", "function "} {
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		rest := strings.TrimPrefix(trimmed, prefix)
		end := strings.IndexAny(rest, "(: ")
		if end <= 0 {
			return "", false
		}
		return rest[:end], true
	}
	return "", false
}

// functionSpan counts lines until the next definition at the same level.
func functionSpan(lines []string, start int) int {
	span := 1
	for i := start + 1; i < len(lines); i++ {
		if _, ok := functionName(lines[i]); ok {
			break
		}
		span++
	}
	return span
}

// maxIndentDepth measures nesting by leading whitespace, counting a tab
// or four spaces as one level.
func maxIndentDepth(code string) int {
	depth := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tabs, spaces := 0, 0
		for _, r := range line {
			if r == '\t' {
				tabs++
			} else if r == ' ' {
				spaces++
			} else {
				break
			}
		}
		if indent := tabs + spaces/4; indent > depth {
			depth = indent
		}
	}
	return depth
}
