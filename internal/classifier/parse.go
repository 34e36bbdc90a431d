package classifier

import (
	"encoding/json"
	"strings"
)

// wireResult accepts both the decision-based format and the older
// is_forward/notes format. Every field is a pointer so that absence can be
// told apart from false/empty.
type wireResult struct {
	Decision           *string `json:"decision"`
	IsForward          *bool   `json:"is_forward"`
	TargetExecutorName *string `json:"target_executor_name"`
	IsBlockingBounce   *bool   `json:"is_blocking_bounce"`
	ModeratorMessage   *string `json:"moderator_message"`
	Notes              *string `json:"notes"`
}

// Parse extracts the first JSON object embedded in raw model output and
// turns it into a Result. Missing required fields are a KindMalformed error.
func Parse(raw string) (Result, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return Result{}, newError(KindMalformed, "no JSON object in model output %q", truncate(raw, 200))
	}

	var w wireResult
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return Result{}, newError(KindMalformed, "decode model output: %v", err)
	}

	res := Result{
		TargetExecutorName: nonBlank(w.TargetExecutorName),
		ModeratorMessage:   nonBlank(w.ModeratorMessage),
	}
	if res.ModeratorMessage == nil {
		res.ModeratorMessage = nonBlank(w.Notes)
	}

	switch {
	case w.Decision != nil:
		d := Decision(strings.ToLower(strings.TrimSpace(*w.Decision)))
		switch d {
		case DecisionForward, DecisionStop, DecisionOK:
		default:
			return Result{}, newError(KindMalformed, "unknown decision %q", *w.Decision)
		}
		res.Decision = d
		if w.IsBlockingBounce != nil {
			res.IsBlockingBounce = *w.IsBlockingBounce
		} else {
			res.IsBlockingBounce = d == DecisionStop
		}
	case w.IsForward != nil:
		if w.IsBlockingBounce == nil {
			return Result{}, newError(KindMalformed, "is_blocking_bounce is required with is_forward")
		}
		res.IsBlockingBounce = *w.IsBlockingBounce
		switch {
		case *w.IsForward:
			res.Decision = DecisionForward
		case res.IsBlockingBounce:
			res.Decision = DecisionStop
		default:
			res.Decision = DecisionOK
		}
	default:
		return Result{}, newError(KindMalformed, "model output has neither decision nor is_forward")
	}

	return res, nil
}

// extractObject returns the span from the first '{' to its matching '}',
// skipping braces inside JSON strings.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" || strings.EqualFold(t, "null") {
		return nil
	}
	return &t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
