package model

import (
	"path"
	"strings"
)

// Path represents a file system path, slash separated and relative to the
// repository root.
type Path string

// FileKind classifies a changed file.
type FileKind int

const (
	// KindUnrelated is any file the pipeline does not understand.
	KindUnrelated FileKind = iota
	// KindSource is production Rust code.
	KindSource
	// KindTest is a Rust file living under a test directory.
	KindTest
	// KindConfig is build or tooling configuration.
	KindConfig
)

func (k FileKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTest:
		return "test"
	case KindConfig:
		return "config"
	default:
		return "unrelated"
	}
}

const sourceExtension = ".rs"

var configExtensions = map[string]bool{
	".toml": true,
	".yaml": true,
	".yml":  true,
	".json": true,
}

// ClassifyPath decides the kind of a file by its path components and extension.
func ClassifyPath(p Path) FileKind {
	clean := strings.TrimPrefix(path.Clean(strings.ReplaceAll(string(p), "\\", "/")), "./")
	base := path.Base(clean)
	ext := path.Ext(base)

	if base == "Cargo.toml" || base == "Cargo.lock" {
		return KindConfig
	}

	if ext == sourceExtension {
		dirs := strings.Split(path.Dir(clean), "/")
		if hasComponentPrefix(dirs, "test") {
			return KindTest
		}

		if hasComponentPrefix(dirs, "src") {
			return KindSource
		}

		return KindUnrelated
	}

	if configExtensions[ext] {
		return KindConfig
	}

	return KindUnrelated
}

func hasComponentPrefix(components []string, prefix string) bool {
	for _, c := range components {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}

	return false
}

// FileDiff is the before/after content of a single changed file.
type FileDiff struct {
	Name   Path
	Before string
	After  string
}

// NewFileDiff builds a FileDiff. Diffs that change nothing are rejected.
func NewFileDiff(name Path, before, after string) (FileDiff, error) {
	if before == after {
		return FileDiff{}, ErrNoChange
	}

	return FileDiff{Name: name, Before: before, After: after}, nil
}

// Kind returns the classification of the diff's path.
func (d FileDiff) Kind() FileKind {
	return ClassifyPath(d.Name)
}

// IsSourceFile reports whether the diff touches production code.
func (d FileDiff) IsSourceFile() bool { return d.Kind() == KindSource }

// IsTestFile reports whether the diff touches a test file.
func (d FileDiff) IsTestFile() bool { return d.Kind() == KindTest }

// IsConfigFile reports whether the diff touches configuration.
func (d FileDiff) IsConfigFile() bool { return d.Kind() == KindConfig }

// IsNewFile reports whether the file did not exist before the change.
func (d FileDiff) IsNewFile() bool { return d.Before == "" }

// MatchesPath reports whether p names this file. Generators often return a
// path relative to some other root, so a suffix match on whole components
// is accepted in either direction.
func (d FileDiff) MatchesPath(p Path) bool {
	a := strings.TrimPrefix(string(d.Name), "./")
	b := strings.TrimPrefix(strings.TrimSpace(string(p)), "./")

	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	return strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}
