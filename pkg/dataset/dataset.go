// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package dataset reads and writes JSONL trajectory datasets.
//
// A dataset file holds one JSON object per line with at least an
// instance_id and a messages list. Records keep the original line bytes
// so that curation tools can select and discard trajectories without ever
// rewriting the ones they keep.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrOutputExists is returned when a curation output path is already
// occupied. Overwriting prior curation results is always fatal.
var ErrOutputExists = errors.New("output file already exists")

// maxLineBytes bounds a single JSONL line. Trajectories carry full agent
// transcripts, so lines run far past bufio's default.
const maxLineBytes = 256 << 20

// Message is one {role, content} entry in a trajectory transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is one trajectory. InstanceID and Messages are parsed out for
// the curation heuristics; Raw is the original line, written back
// verbatim when the record survives a filter or scale pass.
type Record struct {
	InstanceID string
	Messages   []Message
	Raw        json.RawMessage
}

type recordFields struct {
	InstanceID string    `json:"instance_id"`
	Messages   []Message `json:"messages"`
}

// Load reads a JSONL dataset file into records, preserving line order.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var fields recordFields
		if err := json.Unmarshal(line, &fields); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		recs = append(recs, Record{
			InstanceID: fields.InstanceID,
			Messages:   fields.Messages,
			Raw:        raw,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	return recs, nil
}

// Write serializes records to path, one line each, refusing to overwrite.
// The existence check and the write are separate operations; callers are
// responsible for not racing two curation jobs on the same path.
func Write(path string, recs []Record) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s (remove it or choose a different output name)", ErrOutputExists, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range recs {
		if _, err := w.Write(rec.Raw); err != nil {
			f.Close()
			return fmt.Errorf("writing output: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("writing output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing output: %w", err)
	}
	return f.Close()
}

// WithMessages returns a copy of the record carrying msgs in place of the
// original transcript. The raw line is rewritten so only the messages
// field changes; every other field survives untouched. Used by the
// truncation collaborator, which is the one path allowed to hand the
// scaler an edited copy.
func (r Record) WithMessages(msgs []Message) (Record, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &obj); err != nil {
		return Record{}, fmt.Errorf("rewriting record %s: %w", r.InstanceID, err)
	}
	enc, err := json.Marshal(msgs)
	if err != nil {
		return Record{}, fmt.Errorf("rewriting record %s: %w", r.InstanceID, err)
	}
	obj["messages"] = enc
	raw, err := json.Marshal(obj)
	if err != nil {
		return Record{}, fmt.Errorf("rewriting record %s: %w", r.InstanceID, err)
	}
	return Record{InstanceID: r.InstanceID, Messages: msgs, Raw: raw}, nil
}
