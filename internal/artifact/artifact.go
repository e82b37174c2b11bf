// Package artifact persists indicator raw-data archives. An archive is
// a zip holding a single .jsonl member with one entity per line, named
// after the indicator title, generation time and version sequence.
package artifact

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Store persists finished archives and serves them back.
type Store interface {
	// Save writes the archive under name and returns the path or key the
	// archive is retrievable by.
	Save(ctx context.Context, name string, r io.Reader) (string, error)

	// Open streams a previously saved archive.
	// Returns domain.ErrNotFound when no archive exists under path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an archive. Deleting a missing archive is a no-op.
	Delete(ctx context.Context, path string) error
}

// WriteArchive streams records as JSON lines into a zip with a single
// member named after the archive, minus the .zip suffix. Records are
// written in slice order.
func WriteArchive(w io.Writer, name string, records []any) error {
	zw := zip.NewWriter(w)

	member := name
	if len(member) > len(".zip") && member[len(member)-len(".zip"):] == ".zip" {
		member = member[:len(member)-len(".zip")]
	}
	entry, err := zw.Create(member)
	if err != nil {
		return fmt.Errorf("creating zip member: %w", err)
	}

	enc := json.NewEncoder(entry)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}

// ReadArchive decodes every JSON line of the first zip member into raw
// messages, preserving order.
func ReadArchive(r io.ReaderAt, size int64) ([]json.RawMessage, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("archive has no members")
	}

	member, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("opening archive member: %w", err)
	}
	defer member.Close()

	var records []json.RawMessage
	dec := json.NewDecoder(member)
	for dec.More() {
		var record json.RawMessage
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", len(records), err)
		}
		records = append(records, record)
	}
	return records, nil
}
