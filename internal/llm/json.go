package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// ErrNoJSON is returned when a response holds no balanced JSON value.
var ErrNoJSON = errors.New("no JSON value in response")

// StripCodeFence removes a surrounding markdown code block such as
// ```json ... ``` or ``` ... ```.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// ExtractJSON returns the first balanced {...} or [...] substring of text
// that is valid JSON. Brackets inside string literals are ignored.
func ExtractJSON(text string) (string, error) {
	for candidate := range candidates(text) {
		return candidate, nil
	}
	return "", ErrNoJSON
}

// candidates yields every balanced, valid JSON value embedded in text, in
// order of their opening bracket.
func candidates(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for start := 0; start < len(text); start++ {
			if text[start] != '{' && text[start] != '[' {
				continue
			}
			end := matchBalanced(text, start)
			if end < 0 {
				continue
			}
			if candidate := text[start : end+1]; json.Valid([]byte(candidate)) {
				if !yield(candidate) {
					return
				}
			}
		}
	}
}

// matchBalanced returns the index of the bracket closing the one at start,
// or -1 when the value never closes.
func matchBalanced(text string, start int) int {
	var stack []byte
	inString, escaped := false, false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// DecodeJSON decodes a model response into v, which must be a non-nil
// pointer. It strips code fences, then falls back to the embedded JSON
// values in order until one decodes into v.
func DecodeJSON(text string, v any) error {
	text = StripCodeFence(text)
	if text == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", v)
	}
	lastErr := ErrNoJSON
	for candidate := range candidates(text) {
		// Decode into a fresh value so a failed attempt leaves v untouched.
		fresh := reflect.New(target.Elem().Type())
		if err := json.Unmarshal([]byte(candidate), fresh.Interface()); err != nil {
			lastErr = err
			continue
		}
		target.Elem().Set(fresh.Elem())
		return nil
	}
	return lastErr
}

// ParseJSONResponse parses a JSON object from an LLM response, handling
// markdown code blocks and surrounding prose. It returns nil on failure.
func ParseJSONResponse(text string) map[string]any {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var result map[string]any
	if err := DecodeJSON(text, &result); err != nil {
		zap.L().Named("llm").Warn("failed to parse LLM response as JSON", zap.Error(err))
		return nil
	}
	return result
}
