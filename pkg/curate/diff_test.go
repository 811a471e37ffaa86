// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package curate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDiff = `diff --git a/pkg/a.go b/pkg/a.go
index 1111111..2222222 100644
--- a/pkg/a.go
+++ b/pkg/a.go
@@ -1,4 +1,5 @@
 package a
-func Old() {}
+func New() {}
+func Extra() {}
diff --git a/pkg/b.go b/pkg/b.go
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/pkg/b.go
@@ -0,0 +1,2 @@
+package b
+func B() {}
`

func TestAnalyzeDiff_CountsContentLines(t *testing.T) {
	stats := AnalyzeDiff(sampleDiff)
	assert.Equal(t, 4, stats.AddedLines)
	assert.Equal(t, 1, stats.DeletedLines)
	assert.Equal(t, 1, stats.NewFiles)
	assert.Equal(t, 5, stats.TotalEdits())
}

func TestAnalyzeDiff_EmptyPatch(t *testing.T) {
	assert.Equal(t, DiffStats{}, AnalyzeDiff(""))
}

func TestAnalyzeDiff_MetadataExcluded(t *testing.T) {
	// Header lines start with +/- prefixes but are metadata, not content.
	patch := "--- a/x\n+++ b/x\n@@ -1 +1 @@\n"
	assert.Equal(t, DiffStats{}, AnalyzeDiff(patch))
}

func TestAnalyzeDiff_MalformedDegradesGracefully(t *testing.T) {
	// Not a valid diff; counting still reflects prefix-matching lines.
	patch := "this is not a diff\n+one addition\nplain text\n-one deletion"
	stats := AnalyzeDiff(patch)
	assert.Equal(t, 1, stats.AddedLines)
	assert.Equal(t, 1, stats.DeletedLines)
	assert.Equal(t, 0, stats.NewFiles)
}

func TestAnalyzeDiff_NewFilesOnly(t *testing.T) {
	patch := "diff --git a/x b/x\nnew file mode 100644\ndiff --git a/y b/y\nnew file mode 100755\n"
	stats := AnalyzeDiff(patch)
	assert.Equal(t, 2, stats.NewFiles)
	assert.Equal(t, 0, stats.TotalEdits())
}
