package cmdspec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ported from _examples/original_source/tests/unit-parse.py, translated to
// the Go CommandSpec shape.

func TestParseBasicCommand(t *testing.T) {
	got, err := Parse("python -m http.server")
	require.NoError(t, err)
	want := &CommandSpec{Argv: []string{"python", "-m", "http.server"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNamedCommand(t *testing.T) {
	got, err := Parse("A=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Key)
	assert.Equal(t, []string{"python", "-m", "http.server"}, got.Argv)
}

func TestParseDelaySeconds(t *testing.T) {
	got, err := Parse("+5=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.StartDelay)
}

func TestParseDelayFloat(t *testing.T) {
	got, err := Parse("+1.5=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.StartDelay)
}

func TestParseNamedWithDelay(t *testing.T) {
	got, err := Parse("A+5=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Key)
	assert.Equal(t, 5.0, got.StartDelay)
}

func TestParseSingleAction(t *testing.T) {
	got, err := Parse("|silent=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, []string{"silent"}, got.Actions)
}

func TestParseMultipleActions(t *testing.T) {
	got, err := Parse("|silent|end=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, []string{"silent", "end"}, got.Actions)
	assert.True(t, got.HasAction("silent"))
	assert.True(t, got.HasAction("end"))
}

func TestParseComplexCommand(t *testing.T) {
	got, err := Parse("A+1.5|silent|end=python -m http.server")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Key)
	assert.Equal(t, 1.5, got.StartDelay)
	assert.Equal(t, []string{"silent", "end"}, got.Actions)
}

func TestParseQuotedArguments(t *testing.T) {
	got, err := Parse(`echo "hello world"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hello world"}, got.Argv)
}

func TestParseSingleQuotedArguments(t *testing.T) {
	got, err := Parse("echo 'hello world'")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hello world"}, got.Argv)
}

func TestParseEmptyPrefixWithEquals(t *testing.T) {
	got, err := Parse("=echo =")
	require.NoError(t, err)
	assert.Equal(t, "", got.Key)
	assert.Equal(t, []string{"echo", "="}, got.Argv)
}

func TestParseCommandWithPaths(t *testing.T) {
	got, err := Parse("/usr/bin/python3 /path/to/script.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/python3", "/path/to/script.py"}, got.Argv)
}

func TestParseCommandWithFlags(t *testing.T) {
	got, err := Parse(`curl -X POST -H 'Content-Type: application/json' https://api.example.com`)
	require.NoError(t, err)
	assert.Equal(t, []string{"curl", "-X", "POST", "-H", "Content-Type: application/json", "https://api.example.com"}, got.Argv)
}

func TestParseRedirectSingle(t *testing.T) {
	got, err := Parse("B<A=cat")
	require.NoError(t, err)
	assert.Equal(t, Redirect{{Key: "A", Stream: 1}}, got.Redirects)
}

func TestParseRedirectStream2(t *testing.T) {
	got, err := Parse("B<2A=cat")
	require.NoError(t, err)
	assert.Equal(t, Redirect{{Key: "A", Stream: 2}}, got.Redirects)
}

func TestParseRedirectGroup(t *testing.T) {
	got, err := Parse("B<(A,2C)=cat")
	require.NoError(t, err)
	assert.Equal(t, Redirect{{Key: "A", Stream: 1}, {Key: "C", Stream: 2}}, got.Redirects)
}

func TestParseRedirectEmptyGroup(t *testing.T) {
	got, err := Parse("B<()=cat")
	require.NoError(t, err)
	assert.Nil(t, got.Redirects)
}

func TestParseStartOnOutput(t *testing.T) {
	got, err := Parse("B>A=cat")
	require.NoError(t, err)
	assert.Equal(t, StartOnOutput{{Key: "A", Stream: 1}}, got.StartOnOutput)
}

func TestParseDependencyEndWait(t *testing.T) {
	got, err := Parse("B:A=echo hi")
	require.NoError(t, err)
	require.Len(t, got.Dependencies, 1)
	assert.Equal(t, "A", got.Dependencies[0].Key)
	assert.False(t, got.Dependencies[0].WaitForStart)
}

func TestParseDependencyStartWait(t *testing.T) {
	got, err := Parse("B:A&=echo hi")
	require.NoError(t, err)
	require.Len(t, got.Dependencies, 1)
	assert.True(t, got.Dependencies[0].WaitForStart)
}

func TestParseDependencyWithDelay(t *testing.T) {
	got, err := Parse("B:A+1m30s=echo hi")
	require.NoError(t, err)
	require.Len(t, got.Dependencies, 1)
	assert.InDelta(t, 90.0, got.Dependencies[0].TotalDelay(), 1e-9)
}

func TestParseDependencyChain(t *testing.T) {
	got, err := Parse("C:A:B&=echo hi")
	require.NoError(t, err)
	require.Len(t, got.Dependencies, 2)
	assert.Equal(t, "A", got.Dependencies[0].Key)
	assert.Equal(t, "B", got.Dependencies[1].Key)
	assert.True(t, got.Dependencies[1].WaitForStart)
}

func TestParseColorName(t *testing.T) {
	got, err := Parse("A#bright_red=echo hi")
	require.NoError(t, err)
	assert.Equal(t, "bright_red", got.Color)
}

func TestParseColorHex(t *testing.T) {
	got, err := Parse("A#00ff00=echo hi")
	require.NoError(t, err)
	assert.Equal(t, "00ff00", got.Color)
}

func TestParseMalformedDelaySuffixIsError(t *testing.T) {
	_, err := Parse("+1x=echo hi")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseUnterminatedPrefixIsError(t *testing.T) {
	_, err := Parse("A#red echo hi")
	require.Error(t, err)
}

func TestParseEmptyInputIsError(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
}

// P2: delay additivity (spec.md §8).
func TestParseDelayAdditivity(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1m30s", 90},
		{"2m15s500ms", 135.5},
		{"500ms", 0.5},
		{"5", 5},
		{"5s10", 15},
	}
	for _, c := range cases {
		got, err := ParseDelay(c.in)
		require.NoErrorf(t, err, "parsing %q", c.in)
		assert.InDeltaf(t, c.want, got, 1e-9, "parsing %q", c.in)
	}
}

// P1: parse totality — any non-empty argv string parses, with/without a key.
func TestParseTotality(t *testing.T) {
	argvCandidates := []string{
		"echo hi",
		"sleep 0.2",
		`sh -c "sleep 1; echo done"`,
	}
	for _, argv := range argvCandidates {
		withoutKey, err := Parse(argv)
		require.NoError(t, err)
		assert.Equal(t, "", withoutKey.Key)

		withKey, err := Parse("KEY=" + argv)
		require.NoError(t, err)
		assert.Equal(t, "KEY", withKey.Key)
		assert.Equal(t, withoutKey.Argv, withKey.Argv)
	}
}
