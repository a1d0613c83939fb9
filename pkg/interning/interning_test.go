// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package interning

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringInterner_InternResolve(t *testing.T) {
	in := NewStringInterner()

	id1 := in.Intern("serde")
	id2 := in.Intern("serde_json")
	id3 := in.Intern("serde")

	assert.Equal(t, id1, id3, "interning the same string twice returns the same handle")
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "serde", in.Resolve(id1))
	assert.Equal(t, "serde_json", in.Resolve(id2))
	assert.Equal(t, 2, in.Len())
}

func TestStringInterner_ConcurrentIntern(t *testing.T) {
	in := NewStringInterner()
	var wg sync.WaitGroup
	ids := make([]int, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = in.Intern("shared-key")
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id, "every goroutine interning the same string must get the same handle")
	}
	assert.Equal(t, 1, in.Len())
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading dot-slash", "./src/lib.rs", "src/lib.rs"},
		{"leading slash", "/src/lib.rs", "src/lib.rs"},
		{"double slashes", "src//lib.rs", "src/lib.rs"},
		{"dot segments", "src/../src/lib.rs", "src/lib.rs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestKey(t *testing.T) {
	short := Key("serde", "1.0.0", "build")
	assert.False(t, len(short) > maxVerbatimKeyBytes)
	assert.True(t, strings.Contains(short, "serde"))

	long := Key(strings.Repeat("x", 512))
	assert.Len(t, long, 64, "folded keys are a hex sha256 digest")

	assert.Equal(t, Key("a", "b"), Key("a", "b"), "Key must be deterministic")
	assert.NotEqual(t, Key("a", "b"), Key("ab"), "the separator must prevent part concatenation collisions")
}
