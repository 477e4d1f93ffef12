package manifest

import (
	"context"
	"fmt"
)

// SourceEntry is one discovered module before parsing. Name is the fallback
// identifier used when the descriptor omits its own name.
type SourceEntry struct {
	Name         string
	ManifestJSON string
	// Path records where the entry came from, when known.
	Path string
}

// Source supplies entries from an upstream discovery step.
type Source interface {
	Entries(ctx context.Context) ([]SourceEntry, error)
}

// Scan parses every entry, applies the fallback name and keeps enabled
// modules only. Input order is preserved and duplicate names are not
// collapsed. The first parse failure aborts the scan.
func Scan(ctx context.Context, entries []SourceEntry) ([]Manifest, error) {
	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := ParseJSON(entry.ManifestJSON)
		if err != nil {
			return nil, fmt.Errorf("manifest: scan %s: %w", entryLabel(entry), err)
		}
		if m.Name == "" {
			m.Name = entry.Name
		}
		if !m.Enabled {
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// ScanSource collects entries from src and scans them.
func ScanSource(ctx context.Context, src Source) ([]Manifest, error) {
	if src == nil {
		return []Manifest{}, nil
	}
	entries, err := src.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return Scan(ctx, entries)
}

func entryLabel(entry SourceEntry) string {
	if entry.Path != "" {
		return entry.Path
	}
	if entry.Name != "" {
		return entry.Name
	}
	return "<unnamed>"
}
