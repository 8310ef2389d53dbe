package hydraulics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExampleNetwork(t *testing.T) {
	m, err := ParseFile(exampleNetwork)
	require.NoError(t, err)

	assert.Equal(t, "Two zone pumping network", m.Title)
	assert.Len(t, m.Junctions, 3)
	assert.Len(t, m.Reservoirs, 1)
	assert.Len(t, m.Tanks, 2)
	assert.Len(t, m.Pipes, 3)
	require.Len(t, m.Pumps, 2)
	assert.Equal(t, "C1", m.Pumps[0].Curve)
	assert.Equal(t, 15.0, m.Pumps[1].Power)
	assert.Len(t, m.Patterns["DAILY"], 24)
	assert.Equal(t, []CurvePoint{{X: 50, Y: 40}}, m.Curves["C1"])
	assert.Equal(t, Times{Duration: 86400, HydStep: 900, PatternStep: 3600}, m.Times)
	assert.Equal(t, Tank{ID: "T1", Elevation: 30, InitLevel: 3, MinLevel: 0.5, MaxLevel: 6, Diameter: 20}, m.Tanks[0])
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"short tank":    "[TANKS]\n T 1 2 3\n",
		"inverted tank": "[TANKS]\n T 0 1 5 2 10\n",
		"no pump param": "[JUNCTIONS]\n A 0\n B 0\n[PUMPS]\n P A B SPEED\n",
		"unknown node":  "[JUNCTIONS]\n A 0\n[PIPES]\n L A Z\n",
		"unknown curve": "[JUNCTIONS]\n A 0\n B 0\n[PUMPS]\n P A B HEAD X\n",
		"bad duration":  "[TIMES]\n DURATION x:y\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestParseErrorCarriesLine(t *testing.T) {
	_, err := Parse(strings.NewReader("; header\n[TANKS]\n T 1 2\n"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "TANKS", perr.Section)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		v, unit string
		want    int64
	}{
		{"24:00", "", 86400},
		{"0:15", "", 900},
		{"1:00:30", "", 3630},
		{"2", "", 7200},
		{"30", "MIN", 1800},
		{"90", "SEC", 90},
		{"1", "DAYS", 86400},
	}
	for _, c := range cases {
		got, err := parseClock(c.v, c.unit)
		require.NoError(t, err, c.v)
		assert.Equal(t, c.want, got, c.v)
	}
}

func TestParseIgnoresUnsupportedSections(t *testing.T) {
	m, err := Parse(strings.NewReader("[OPTIONS]\n Units LPS\n[COORDINATES]\n A 1 2\n[JUNCTIONS]\n A 0\n[END]\n[JUNCTIONS]\n B 0\n"))
	require.NoError(t, err)
	assert.Len(t, m.Junctions, 1)
}
