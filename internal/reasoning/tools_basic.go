package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// arithmeticTool evaluates a single binary expression of the form
// "a op b" (e.g. "12 * 7"). It deliberately does not support a full
// expression grammar — the standard tool set favors small, predictable
// tools an LLM can reliably drive over a general calculator.
type arithmeticTool struct{}

func NewArithmeticTool() Tool { return arithmeticTool{} }

func (arithmeticTool) Name() string { return "arithmetic" }
func (arithmeticTool) Describe() string {
	return `evaluate a simple binary arithmetic expression, e.g. "12 * 7" or "3.5 + 2"`
}
func (arithmeticTool) Execute(ctx context.Context, input string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) != 3 {
		return "", fmt.Errorf("arithmetic: expected \"a op b\", got %q", input)
	}
	a, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", fmt.Errorf("arithmetic: invalid operand %q", parts[0])
	}
	b, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return "", fmt.Errorf("arithmetic: invalid operand %q", parts[2])
	}
	var result float64
	switch parts[1] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return "", fmt.Errorf("arithmetic: division by zero")
		}
		result = a / b
	default:
		return "", fmt.Errorf("arithmetic: unsupported operator %q", parts[1])
	}
	return strconv.FormatFloat(result, 'g', -1, 64), nil
}

// stringUtilTool performs a small set of named string operations:
// "upper:TEXT", "lower:TEXT", "reverse:TEXT", "count_words:TEXT".
type stringUtilTool struct{}

func NewStringUtilTool() Tool { return stringUtilTool{} }

func (stringUtilTool) Name() string { return "stringutil" }
func (stringUtilTool) Describe() string {
	return `perform a string operation, input as "op:text" where op is upper, lower, reverse, or count_words`
}
func (stringUtilTool) Execute(ctx context.Context, input string) (string, error) {
	op, text, ok := strings.Cut(input, ":")
	if !ok {
		return "", fmt.Errorf("stringutil: expected \"op:text\", got %q", input)
	}
	switch strings.TrimSpace(op) {
	case "upper":
		return strings.ToUpper(text), nil
	case "lower":
		return strings.ToLower(text), nil
	case "reverse":
		runes := []rune(text)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	case "count_words":
		return strconv.Itoa(len(strings.Fields(text))), nil
	default:
		return "", fmt.Errorf("stringutil: unknown op %q", op)
	}
}

// jsonTool pretty-prints or extracts a field from a JSON document, input as
// "path:DOCUMENT" where path is "" for pretty-print or a dotted field path.
type jsonTool struct{}

func NewJSONTool() Tool { return jsonTool{} }

func (jsonTool) Name() string { return "json" }
func (jsonTool) Describe() string {
	return `inspect JSON, input as "path:DOCUMENT"; path empty pretty-prints, otherwise a dotted field path is extracted`
}
func (jsonTool) Execute(ctx context.Context, input string) (string, error) {
	path, doc, ok := strings.Cut(input, ":")
	if !ok {
		return "", fmt.Errorf("json: expected \"path:DOCUMENT\", got %q", input)
	}
	var parsed any
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return "", fmt.Errorf("json: invalid document: %w", err)
	}
	path = strings.TrimSpace(path)
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			m, ok := parsed.(map[string]any)
			if !ok {
				return "", fmt.Errorf("json: cannot index %q into non-object", key)
			}
			parsed, ok = m[key]
			if !ok {
				return "", fmt.Errorf("json: field %q not found", key)
			}
		}
	}
	out, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("json: re-marshal: %w", err)
	}
	return string(out), nil
}

// datetimeTool answers small date/time questions. Supported inputs: "now"
// (current UTC time in RFC3339) and "diff:RFC3339A,RFC3339B" (duration
// between the two instants).
type datetimeTool struct {
	now func() time.Time
}

func NewDatetimeTool(now func() time.Time) Tool { return datetimeTool{now: now} }

func (datetimeTool) Name() string { return "datetime" }
func (datetimeTool) Describe() string {
	return `answer date/time questions: "now" for the current UTC time, or "diff:A,B" (RFC3339 instants) for the duration between them`
}
func (t datetimeTool) Execute(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "now" {
		return t.now().UTC().Format(time.RFC3339), nil
	}
	rest, ok := strings.CutPrefix(input, "diff:")
	if !ok {
		return "", fmt.Errorf("datetime: unsupported input %q", input)
	}
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("datetime: expected \"diff:A,B\"")
	}
	a, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return "", fmt.Errorf("datetime: invalid instant A: %w", err)
	}
	b, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return "", fmt.Errorf("datetime: invalid instant B: %w", err)
	}
	return b.Sub(a).String(), nil
}
