// Package check defines the diagnostic report handed to the repair engine.
//
// Checks are produced by the external diagnostic layer; this engine never
// decides what is wrong, it only reads the verdicts.
package check

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Status is a check's verdict.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Check is a single named diagnostic condition with its verdict.
type Check struct {
	CheckID string `json:"check_id"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// ParseReport reads a diagnostic report: either a JSON array of checks or
// one JSON object per line. Order is preserved.
func ParseReport(r io.Reader) ([]Check, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var checks []Check
		if err := json.Unmarshal([]byte(trimmed), &checks); err != nil {
			return nil, fmt.Errorf("parse report: %w", err)
		}
		return validate(checks)
	}

	var checks []Check
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c Check
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("parse report line %d: %w", line, err)
		}
		checks = append(checks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return validate(checks)
}

// Failing returns the checks with a fail verdict, preserving order.
func Failing(checks []Check) []Check {
	var out []Check
	for _, c := range checks {
		if c.Status == StatusFail {
			out = append(out, c)
		}
	}
	return out
}

func validate(checks []Check) ([]Check, error) {
	for i, c := range checks {
		if c.CheckID == "" {
			return nil, fmt.Errorf("check %d: missing check_id", i)
		}
		if c.Status != StatusPass && c.Status != StatusFail {
			return nil, fmt.Errorf("check %q: unknown status %q", c.CheckID, c.Status)
		}
	}
	return checks, nil
}
