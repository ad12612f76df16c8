package domain

import (
	"slices"
	"strings"

	"failpass.dev/pkg/failpass/internal/adapter"
)

// ImportCandidate is a generated import line together with its expanded
// specs. Specs is empty when the line could not be parsed as a use
// declaration; such lines are kept verbatim.
type ImportCandidate struct {
	Text  string
	Specs []adapter.UseSpec
}

// DedupImports filters candidates against the imports already present in a
// test module and returns the lines to insert, in candidate order.
//
// A candidate spec is dropped when it equals an existing import, when an
// existing glob with a matching prefix covers it, when it binds the same leaf
// name as an existing non-glob import, or when its leaf names an extern crate
// declared in the module. Leaf collisions always favour the existing import,
// even when the paths refer to different items.
//
// Grouped candidates are judged per name. A group that survives whole keeps
// its original text; otherwise the surviving names are emitted one per line.
func DedupImports(existing []adapter.UseSpec, externs []string, candidates []ImportCandidate) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)

	emit := func(line string) {
		if seen[line] {
			return
		}

		seen[line] = true

		out = append(out, line)
	}

	for _, c := range candidates {
		if len(c.Specs) == 0 {
			emit(c.Text)
			continue
		}

		var kept []adapter.UseSpec

		for _, spec := range c.Specs {
			if importCovered(spec, existing, externs) {
				continue
			}

			kept = append(kept, spec)
		}

		if len(kept) == len(c.Specs) {
			emit(c.Text)
			continue
		}

		for _, spec := range kept {
			emit(spec.String())
		}
	}

	return out
}

func importCovered(candidate adapter.UseSpec, existing []adapter.UseSpec, externs []string) bool {
	if slices.Contains(externs, candidate.Leaf()) {
		return true
	}

	parts := candidate.Parts()

	for _, e := range existing {
		eParts := e.Parts()

		if slices.Equal(parts, eParts) && candidate.Alias == e.Alias {
			return true
		}

		if e.Glob {
			if len(parts) >= len(eParts) && slices.Equal(parts[:len(eParts)-1], eParts[:len(eParts)-1]) {
				return true
			}

			continue
		}

		if candidate.Leaf() == e.Leaf() {
			return true
		}
	}

	return false
}

// normalizeImport trims a generated import line and restores a missing
// trailing semicolon on use declarations.
func normalizeImport(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	if (strings.HasPrefix(line, "use ") || strings.HasPrefix(line, "pub use ")) && !strings.HasSuffix(line, ";") {
		line += ";"
	}

	return line
}
