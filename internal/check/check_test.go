package check

import (
	"strings"
	"testing"
)

func TestParseReport_Array(t *testing.T) {
	input := `[
  {"check_id": "path.ordering", "status": "fail", "message": "PATH order wrong"},
  {"check_id": "shell.default", "status": "pass"}
]`
	checks, err := ParseReport(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks[0].CheckID != "path.ordering" || checks[0].Status != StatusFail {
		t.Errorf("first check wrong: %+v", checks[0])
	}
	if checks[1].Status != StatusPass {
		t.Errorf("second check wrong: %+v", checks[1])
	}
}

func TestParseReport_JSONLines(t *testing.T) {
	input := `{"check_id": "config.missing", "status": "fail"}

{"check_id": "tool.fzf", "status": "fail", "message": "fzf not in PATH"}
`
	checks, err := ParseReport(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks[1].Message != "fzf not in PATH" {
		t.Errorf("message lost: %+v", checks[1])
	}
}

func TestParseReport_OrderPreserved(t *testing.T) {
	input := `[{"check_id":"b","status":"fail"},{"check_id":"a","status":"fail"},{"check_id":"c","status":"fail"}]`
	checks, err := ParseReport(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	got := []string{checks[0].CheckID, checks[1].CheckID, checks[2].CheckID}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order not preserved: got %v", got)
		}
	}
}

func TestParseReport_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":     `[{"status":"fail"}]`,
		"unknown status": `[{"check_id":"x","status":"warning"}]`,
		"bad json":       `{nope`,
	}
	for name, input := range cases {
		if _, err := ParseReport(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseReport_Empty(t *testing.T) {
	checks, err := ParseReport(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty report should parse: %v", err)
	}
	if len(checks) != 0 {
		t.Errorf("expected no checks, got %d", len(checks))
	}
}

func TestFailing(t *testing.T) {
	checks := []Check{
		{CheckID: "a", Status: StatusPass},
		{CheckID: "b", Status: StatusFail},
		{CheckID: "c", Status: StatusFail},
	}
	failing := Failing(checks)
	if len(failing) != 2 || failing[0].CheckID != "b" || failing[1].CheckID != "c" {
		t.Errorf("failing = %+v", failing)
	}
}
