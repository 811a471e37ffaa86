// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package curate

import "strings"

// DiffStats summarizes the edits in one unified-diff patch.
type DiffStats struct {
	AddedLines   int
	DeletedLines int
	NewFiles     int
}

// TotalEdits returns the combined added and deleted line count.
func (s DiffStats) TotalEdits() int {
	return s.AddedLines + s.DeletedLines
}

// AnalyzeDiff scans a unified diff and counts added lines, deleted lines,
// and new files. Diff metadata (file headers, +++/--- markers, hunk
// headers) never counts as content. Malformed input is not an error:
// the counts reflect whatever prefix-matching lines exist, and an empty
// patch yields zero stats.
func AnalyzeDiff(patch string) DiffStats {
	var stats DiffStats
	if patch == "" {
		return stats
	}
	for _, line := range strings.Split(patch, "\n") {
		// git marks newly created files with a "new file mode" line.
		if strings.HasPrefix(line, "new file mode") {
			stats.NewFiles++
		}
		if strings.HasPrefix(line, "diff --git") ||
			strings.HasPrefix(line, "+++") ||
			strings.HasPrefix(line, "---") ||
			strings.HasPrefix(line, "@@") {
			continue
		}
		if strings.HasPrefix(line, "+") {
			stats.AddedLines++
		}
		if strings.HasPrefix(line, "-") {
			stats.DeletedLines++
		}
	}
	return stats
}
