package query

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractCode pulls a single expression and an optional explanation out of
// completion text. The completion may wrap the expression in a code fence
// or surround it with prose; both are stripped.
func ExtractCode(response string) (code, explanation string, err error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", "", fmt.Errorf("empty completion")
	}

	if fenced := extractFencedBlock(response); fenced != "" {
		return cleanCode(fenced), extractProse(response), nil
	}

	// No fence: take the first line that looks like an expression and treat
	// the rest as prose.
	lines := strings.Split(response, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !looksLikeExpression(line) {
			continue
		}
		rest := strings.TrimSpace(strings.Join(append(lines[:i:i], lines[i+1:]...), " "))
		return cleanCode(line), truncateProse(rest), nil
	}

	return "", "", fmt.Errorf("no expression found in completion")
}

// extractFencedBlock returns the contents of the first markdown code fence.
func extractFencedBlock(response string) string {
	start := strings.Index(response, "```")
	if start == -1 {
		return ""
	}
	body := response[start+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.Index(body, "\n"); nl != -1 && !strings.Contains(body[:nl], "(") {
		body = body[nl+1:]
	}
	end := strings.Index(body, "```")
	if end == -1 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}

// extractProse returns the text outside code fences, truncated.
func extractProse(response string) string {
	result := response
	for {
		start := strings.Index(result, "```")
		if start == -1 {
			break
		}
		end := strings.Index(result[start+3:], "```")
		if end == -1 {
			result = result[:start]
			break
		}
		result = result[:start] + result[start+3+end+3:]
	}
	return truncateProse(strings.TrimSpace(result))
}

func truncateProse(s string) string {
	return truncate(s, 300)
}

// truncate bounds s to max bytes, cutting on a rune boundary so a
// multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// cleanCode normalizes an extracted candidate: single line, no assignment
// prefix the model may have added.
func cleanCode(code string) string {
	code = strings.TrimSpace(code)
	// Some completions prefix "result = "; the grammar has no assignment.
	if idx := strings.Index(code, "="); idx > 0 && idx < 12 &&
		!strings.ContainsAny(code[:idx], "(<>!") && code[idx-1] != '!' &&
		(idx+1 >= len(code) || code[idx+1] != '=') {
		code = strings.TrimSpace(code[idx+1:])
	}
	if nl := strings.Index(code, "\n"); nl != -1 {
		code = strings.TrimSpace(code[:nl])
	}
	return code
}

// looksLikeExpression reports whether a line plausibly is a candidate
// expression rather than prose.
func looksLikeExpression(line string) bool {
	if !strings.Contains(line, "(") && !strings.Contains(line, "df") {
		return false
	}
	// Prose sentences tend to contain spaces without operators or calls.
	return strings.Contains(line, "(") || strings.HasPrefix(line, "df")
}
