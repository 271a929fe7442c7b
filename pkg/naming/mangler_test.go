package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/rookery/pkg/types"
)

type fakeGroup struct {
	full string
	root string
}

func (g *fakeGroup) FullName() string { return g.full }
func (g *fakeGroup) RootDir() string  { return g.root }

type fakeChild struct {
	name string
}

func (c *fakeChild) Name() string                              { return c.name }
func (c *fakeChild) SetName(name string)                       { c.name = name }
func (c *fakeChild) OnLoad(_ types.Group, _ string) error      { return nil }
func (c *fakeChild) OnCreatedFromScratch()                     {}
func (c *fakeChild) Save() error                               { return nil }

func TestDefaultDirName(t *testing.T) {
	g := &fakeGroup{full: "org/repo"}
	m := Default{}

	_, ok := m.DirName(g, &fakeChild{})
	assert.False(t, ok, "child without a name has no directory name")

	dir, ok := m.DirName(g, &fakeChild{name: "Feature/1"})
	require.True(t, ok)
	assert.Equal(t, "feature-1", dir)

	name, ok := m.ItemName(g, &fakeChild{name: "Feature/1"})
	require.True(t, ok)
	assert.Equal(t, "Feature/1", name)
}

func TestRecordLegacyName(t *testing.T) {
	g := &fakeGroup{full: "org/repo"}
	c := &fakeChild{}

	RecordLegacyName(Default{}, g, c, "Feature-1")
	assert.Equal(t, "Feature-1", c.Name())
}

func TestMangle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already safe", in: "main", want: "main"},
		{name: "slash becomes dash", in: "Feature/1", want: "feature-1"},
		{name: "uppercase folded", in: "Release", want: "release"},
		{name: "runs collapse", in: "a//b  c", want: "a-b-c"},
		{name: "edges trimmed", in: "/main/", want: "main"},
		{name: "underscore and dot kept", in: "v1.2_rc", want: "v1.2_rc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mangle(tt.in))
		})
	}
}

func TestMangleDeterministic(t *testing.T) {
	for _, in := range []string{"main", "Feature/1", "日本語ブランチ", "COM1", ""} {
		assert.Equal(t, Mangle(in), Mangle(in), "mangle of %q must be stable", in)
	}
}

func TestMangleConstraints(t *testing.T) {
	inputs := []string{
		"", ".", "..", "AUX", "con", "NUL", "COM1", "lpt9",
		"a very long branch name that easily exceeds the thirty-two character budget",
		"trailing.dot.", "日本語ブランチ", "x/y/z", "weird\x00name",
	}

	for _, in := range inputs {
		got := Mangle(in)
		assert.LessOrEqual(t, len(got), MaxDirNameLength, "input %q", in)
		assert.NotEmpty(t, got, "input %q", in)
		assert.False(t, reservedNames[got], "input %q mangled to reserved %q", in, got)
		for _, r := range got {
			safe := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
				r == '_' || r == '.' || r == '-'
			assert.True(t, safe, "input %q produced unsafe rune %q", in, r)
		}
	}
}

func TestMangleNormalizationInsensitive(t *testing.T) {
	// e with acute accent: NFC (single rune) vs NFD (e + combining mark).
	nfc := "café"
	nfd := "café"
	assert.Equal(t, Mangle(nfc), Mangle(nfd))
}

func TestMangleDistinctLongNames(t *testing.T) {
	a := Mangle("release/very-long-branch-name-for-the-2024-q1-launch-window")
	b := Mangle("release/very-long-branch-name-for-the-2024-q2-launch-window")
	assert.NotEqual(t, a, b)
}

func TestDefaultItemNameFromLegacy(t *testing.T) {
	g := &fakeGroup{full: "org/repo"}
	m := Default{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "main", want: "main"},
		{name: "forbidden chars replaced", in: "a?b#c[d]e", want: "a-b-c-d-e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ItemNameFromLegacy(g, tt.in))
		})
	}

	// Degenerate directories still get a usable, non-empty name.
	for _, in := range []string{"", ".", ".."} {
		got := m.ItemNameFromLegacy(g, in)
		require.NotEmpty(t, got)
		assert.NotEqual(t, ".", got)
		assert.NotEqual(t, "..", got)
	}
}

func TestLegacyManglerIsIdentity(t *testing.T) {
	g := &fakeGroup{full: "org/repo"}
	m := Legacy{}

	assert.Equal(t, "Feature/1", m.ItemNameFromLegacy(g, "Feature/1"))
	assert.Equal(t, "Feature/1", m.DirNameFromLegacy(g, "Feature/1"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	m, ok := r.Get("default")
	require.True(t, ok)
	assert.IsType(t, Default{}, m)

	m, ok = r.Get("legacy")
	require.True(t, ok)
	assert.IsType(t, Legacy{}, m)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}
