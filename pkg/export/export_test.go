package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

func sampleResults() model.Results {
	return model.Results{
		Pumps: []model.PumpResult{{ID: "P1", Status: []int{1, 0}, Energy: []float64{2.5, 0}}},
		Tanks: []model.TankResult{{ID: "T1", Level: []float64{3, 3.25}}},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResults()))
	var m map[string][]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Len(t, m["pumps"], 1)
	require.Len(t, m["tanks"], 1)
	for _, k := range []string{"id", "status", "energy"} {
		if _, ok := m["pumps"][0][k]; !ok {
			t.Errorf("missing pump key %s", k)
		}
	}
	if _, ok := m["tanks"][0]["level"]; !ok {
		t.Errorf("missing tank level")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "kind,id,hour,status,energy,level", lines[0])
	assert.Equal(t, "pump,P1,0,1,2.5,", lines[1])
	assert.Equal(t, "tank,T1,1,,,3.25", lines[4])
}

func TestWriteScheduleCSV(t *testing.T) {
	var buf bytes.Buffer
	s := model.Schedule{"P2": {0, 1}, "P1": {1, 1}}
	require.NoError(t, WriteScheduleCSV(&buf, s))
	assert.Equal(t, "pump_id,h0,h1\nP1,1,1\nP2,0,1\n", buf.String())
}

func TestReadSchedule(t *testing.T) {
	s, err := ReadSchedule(strings.NewReader("P1: [1, 0, 1]\nP2: [0, 0, 0]\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, s["P1"])

	s, err = ReadSchedule(strings.NewReader(`{"P1": [0, 1]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, s["P1"])

	_, err = ReadSchedule(strings.NewReader("P1: [2]\n"))
	if !errors.Is(err, model.ErrInvalidControlValue) {
		t.Fatalf("expected invalid control value, got %v", err)
	}
}

func TestWriteFileByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "res.csv")
	require.NoError(t, WriteFile(csvPath, sampleResults()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "kind,id"))

	jsonPath := filepath.Join(dir, "res.json")
	require.NoError(t, WriteFile(jsonPath, sampleResults()))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestWriteScheduleFileReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.json")
	s := model.Schedule{"P1": {1, 0, 1}, "P2": {0, 0, 1}}
	require.NoError(t, WriteScheduleFile(path, s))
	got, err := ReadScheduleFile(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	csvPath := filepath.Join(t.TempDir(), "best.csv")
	require.NoError(t, WriteScheduleFile(csvPath, s))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "pump_id,h0,h1,h2\nP1,1,0,1\nP2,0,0,1\n", string(data))
}
