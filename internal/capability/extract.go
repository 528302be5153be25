package capability

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	tikzBegin = `\begin{tikzpicture}`
	tikzEnd   = `\end{tikzpicture}`
)

// ExtractTikZ returns the tikzpicture environment found in raw, re-wrapped
// around its trimmed interior. Output without either delimiter is returned
// unmodified, so clean markup passes through unchanged.
func ExtractTikZ(raw string) string {
	hasBegin := strings.Contains(raw, tikzBegin)
	hasEnd := strings.Contains(raw, tikzEnd)
	if !hasBegin && !hasEnd {
		return raw
	}

	body := raw
	if hasBegin {
		body = body[strings.Index(body, tikzBegin)+len(tikzBegin):]
	}
	if i := strings.Index(body, tikzEnd); i >= 0 {
		body = body[:i]
	}
	return tikzBegin + "\n" + strings.TrimSpace(body) + "\n" + tikzEnd
}

// DecodePlan decodes structured-plan output into a JSON object. Markdown
// code fences and prose around the outermost object are tolerated.
func DecodePlan(backend, raw string) (map[string]any, error) {
	text := stripFence(strings.TrimSpace(raw))

	var out map[string]any
	err := json.Unmarshal([]byte(text), &out)
	if err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end <= start {
			return nil, &MalformedPlanError{Backend: backend, Raw: raw, Err: fmt.Errorf("no JSON object found: %w", err)}
		}
		if err2 := json.Unmarshal([]byte(text[start:end+1]), &out); err2 != nil {
			return nil, &MalformedPlanError{Backend: backend, Raw: raw, Err: err2}
		}
	}
	if out == nil {
		return nil, &MalformedPlanError{Backend: backend, Raw: raw, Err: fmt.Errorf("plan is null")}
	}
	return out, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
