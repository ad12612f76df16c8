package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path Path
		want FileKind
	}{
		{"src/lib.rs", KindSource},
		{"glean-core/src/metrics/string.rs", KindSource},
		{"./src/main.rs", KindSource},
		{"tests/integration.rs", KindTest},
		{"glean-core/tests/ping.rs", KindTest},
		{"test_utils/helpers.rs", KindTest},
		{"Cargo.toml", KindConfig},
		{"glean-core/Cargo.lock", KindConfig},
		{".github/workflows/ci.yaml", KindConfig},
		{"schema.json", KindConfig},
		{"README.md", KindUnrelated},
		{"build.rs", KindUnrelated},
		{"benches/bench.rs", KindUnrelated},
		{"src/lib.py", KindUnrelated},
	}

	for _, tt := range tests {
		t.Run(string(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPath(tt.path))
		})
	}
}

func TestNewFileDiff_RejectsNoChange(t *testing.T) {
	_, err := NewFileDiff("src/lib.rs", "fn a() {}\n", "fn a() {}\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoChange))

	d, err := NewFileDiff("src/lib.rs", "", "fn a() {}\n")
	require.NoError(t, err)
	assert.True(t, d.IsSourceFile())
	assert.True(t, d.IsNewFile())
	assert.False(t, d.IsTestFile())
	assert.False(t, d.IsConfigFile())
}

func TestFileDiff_MatchesPath(t *testing.T) {
	d := FileDiff{Name: "glean-core/src/lib.rs"}

	assert.True(t, d.MatchesPath("glean-core/src/lib.rs"))
	assert.True(t, d.MatchesPath("src/lib.rs"))
	assert.True(t, d.MatchesPath("/app/testbed/glean-core/src/lib.rs"))
	assert.False(t, d.MatchesPath("lib.rs.bak"))
	assert.False(t, d.MatchesPath("core/src/lib.rs"))
	assert.False(t, d.MatchesPath(""))
}

func TestChangeSet(t *testing.T) {
	var cs ChangeSet

	cs.Add(FileDiff{Name: "src/b.rs", Before: "a", After: "b"})
	cs.Add(FileDiff{Name: "Cargo.toml", Before: "a", After: "b"})
	cs.Add(FileDiff{Name: "src/a.rs", Before: "a", After: "b"})

	require.Len(t, cs.Sources, 2)
	assert.Equal(t, Path("src/b.rs"), cs.Sources[0].Name, "discovery order is kept")
	assert.Equal(t, Path("src/a.rs"), cs.Sources[1].Name)
	assert.True(t, cs.FulfillsRequirements())

	got, ok := cs.Resolve("a.rs")
	require.True(t, ok)
	assert.Equal(t, Path("src/a.rs"), got.Name)

	_, ok = cs.Resolve("Cargo.toml")
	assert.False(t, ok, "config files never receive tests")

	cs.Add(FileDiff{Name: "tests/it.rs", Before: "a", After: "b"})
	assert.False(t, cs.FulfillsRequirements())
	assert.Len(t, cs.All(), 4)
}

func TestChangeSet_WithReplacedAfter(t *testing.T) {
	cs := ChangeSet{
		Sources: []FileDiff{
			{Name: "src/a.rs", Before: "a1", After: "a2"},
			{Name: "src/b.rs", Before: "b1", After: "b2"},
		},
		Config: []FileDiff{{Name: "Cargo.toml", Before: "c1", After: "c2"}},
	}

	got := cs.WithReplacedAfter("src/b.rs", "b3")
	require.Len(t, got, 3)
	assert.Equal(t, "a2", got[0].After)
	assert.Equal(t, "b3", got[1].After)
	assert.Equal(t, Path("Cargo.toml"), got[2].Name)
	assert.Equal(t, "b2", cs.Sources[1].After, "receiver is not modified")
}
