package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRust = `use std::fmt;

extern crate serde;

/// Adds numbers.
pub fn add(a: i32, b: i32) -> i32 {
    a + b
}

impl Counter {
    fn bump(&mut self) {
        self.n += 1;
    }
}

#[cfg(test)]
mod tests {
    use super::*;
    use std::collections::{HashMap, hash_map::{self, Entry}};
    use crate::io::Reader as R;
    extern crate tempfile as tf;

    #[test]
    fn adds() {
        assert_eq!(add(1, 2), 3);
    }
}
`

func TestTreeSitterRustAdapter_Parse(t *testing.T) {
	a := NewTreeSitterRustAdapter()

	file, err := a.Parse(context.Background(), []byte(sampleRust))
	require.NoError(t, err)
	require.False(t, file.HasErrors())

	mod, ok := file.Module("test", "tests")
	require.True(t, ok)
	require.NotNil(t, mod.Block)
	assert.Equal(t, "tests", mod.Name)
	assert.Equal(t, []string{"#[cfg(test)]"}, mod.Attributes)
	assert.Equal(t, 15, mod.AttrStart.Row)
	assert.Equal(t, 16, mod.Block.Open.Row)

	items := mod.Block.Items
	require.Len(t, items, 5)

	assert.Equal(t, RustUse, items[0].Kind)
	require.Len(t, items[0].Imports, 1)
	assert.True(t, items[0].Imports[0].Glob)
	assert.Equal(t, []string{"super"}, items[0].Imports[0].Segments)

	require.Len(t, items[1].Imports, 3)
	assert.Equal(t, "use std::collections::HashMap;", items[1].Imports[0].String())
	assert.Equal(t, "use std::collections::hash_map;", items[1].Imports[1].String())
	assert.Equal(t, "hash_map", items[1].Imports[1].Leaf())
	assert.Equal(t, "use std::collections::hash_map::Entry;", items[1].Imports[2].String())

	require.Len(t, items[2].Imports, 1)
	assert.Equal(t, "R", items[2].Imports[0].Leaf())
	assert.Equal(t, []string{"crate", "io"}, items[2].Imports[0].Prefix())

	assert.Equal(t, RustExternCrate, items[3].Kind)
	assert.Equal(t, "tempfile", items[3].Name)
	assert.Equal(t, "tf", items[3].Alias)

	fn := items[4]
	assert.Equal(t, RustFunction, fn.Kind)
	assert.Equal(t, "adds", fn.Name)
	assert.True(t, fn.HasAttribute("test"))
	assert.Equal(t, 22, fn.AttrStart.Row)
	assert.Equal(t, 23, fn.Start.Row)
	assert.Equal(t, 25, fn.End.Row)
}

func TestTreeSitterRustAdapter_Functions(t *testing.T) {
	file, err := NewTreeSitterRustAdapter().Parse(context.Background(), []byte(sampleRust))
	require.NoError(t, err)

	var names []string
	for _, fn := range file.Functions() {
		names = append(names, fn.Name)
	}

	assert.Equal(t, []string{"add", "bump", "adds"}, names)

	add := file.Functions()[0]
	require.NotNil(t, add.Signature)
	assert.Equal(t, "fn add(a: i32, b: i32) -> i32", add.Signature.String())
	assert.Equal(t, "fn bump(&mut self) -> ()", file.Functions()[1].Signature.String())
}

func TestTreeSitterRustAdapter_SyntaxErrors(t *testing.T) {
	file, err := NewTreeSitterRustAdapter().Parse(context.Background(), []byte("fn broken( {\n"))
	require.NoError(t, err)
	assert.True(t, file.HasErrors())
}

func TestTreeSitterRustAdapter_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTreeSitterRustAdapter().Parse(ctx, []byte("fn a() {}"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUseSpec(t *testing.T) {
	glob := UseSpec{Segments: []string{"foo"}, Glob: true}
	assert.Equal(t, "*", glob.Leaf())
	assert.Equal(t, []string{"foo"}, glob.Prefix())
	assert.Equal(t, "use foo::*;", glob.String())

	aliased := UseSpec{Segments: []string{"a", "b"}, Alias: "c"}
	assert.Equal(t, "c", aliased.Leaf())
	assert.Equal(t, "use a::b as c;", aliased.String())
}
