// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeLines writes a JSONL file into a temp dir and returns its path.
func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ParsesRecords(t *testing.T) {
	path := writeLines(t,
		`{"instance_id":"repo-a_1","messages":[{"role":"user","content":"hi"}],"patch":"x"}`,
		`{"instance_id":"repo-a_2","messages":[]}`,
	)
	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].InstanceID != "repo-a_1" {
		t.Errorf("InstanceID = %q, want %q", recs[0].InstanceID, "repo-a_1")
	}
	if len(recs[0].Messages) != 1 || recs[0].Messages[0].Role != "user" {
		t.Errorf("Messages = %+v, want one user message", recs[0].Messages)
	}
}

func TestLoad_SkipsBlankLines(t *testing.T) {
	path := writeLines(t, `{"instance_id":"a_1","messages":[]}`, "", `{"instance_id":"a_2","messages":[]}`)
	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}
}

func TestLoad_RejectsBadJSON(t *testing.T) {
	path := writeLines(t, `{"instance_id":`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted malformed JSON")
	}
}

func TestWrite_RoundTripsRawLines(t *testing.T) {
	// The extra "meta" field is not parsed into Record; it must still
	// survive a load/write cycle byte for byte.
	line := `{"instance_id":"a_1","messages":[],"meta":{"k":1}}`
	src := writeLines(t, line)
	recs, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out.jsonl")
	if err := Write(dst, recs); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimRight(string(data), "\n"); got != line {
		t.Errorf("round trip changed line:\n got %s\nwant %s", got, line)
	}
}

func TestWrite_RefusesOverwrite(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.jsonl")
	if err := Write(dst, nil); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	err := Write(dst, nil)
	if !errors.Is(err, ErrOutputExists) {
		t.Errorf("second Write err = %v, want ErrOutputExists", err)
	}
}

func TestWithMessages_RewritesOnlyMessages(t *testing.T) {
	src := writeLines(t, `{"instance_id":"a_1","messages":[{"role":"user","content":"one"},{"role":"assistant","content":"two"}],"meta":"kept"}`)
	recs, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := recs[0].WithMessages(recs[0].Messages[:1])
	if err != nil {
		t.Fatalf("WithMessages: %v", err)
	}
	if len(out.Messages) != 1 {
		t.Fatalf("Messages len = %d, want 1", len(out.Messages))
	}
	if !strings.Contains(string(out.Raw), `"meta":"kept"`) {
		t.Errorf("Raw lost unrelated field: %s", out.Raw)
	}
	if strings.Contains(string(out.Raw), "two") {
		t.Errorf("Raw still holds truncated message: %s", out.Raw)
	}
}
