package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// WriteJSON writes the result bundle to w in JSON format.
func WriteJSON(w io.Writer, res model.Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes the result bundle to w in CSV format, one row per entity
// and hour. Columns that do not apply to the entity are left empty.
func WriteCSV(w io.Writer, res model.Results) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "id", "hour", "status", "energy", "level"}); err != nil {
		return err
	}
	for _, p := range res.Pumps {
		for h, st := range p.Status {
			energy := ""
			if h < len(p.Energy) {
				energy = formatFloat(p.Energy[h])
			}
			if err := cw.Write([]string{"pump", p.ID, strconv.Itoa(h), strconv.Itoa(st), energy, ""}); err != nil {
				return err
			}
		}
	}
	for _, t := range res.Tanks {
		for h, level := range t.Level {
			if err := cw.Write([]string{"tank", t.ID, strconv.Itoa(h), "", "", formatFloat(level)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScheduleCSV writes one row per pump with its hourly statuses.
func WriteScheduleCSV(w io.Writer, s model.Schedule) error {
	cw := csv.NewWriter(w)
	width := 0
	for _, v := range s {
		width = max(width, len(v))
	}
	header := []string{"pump_id"}
	for h := 0; h < width; h++ {
		header = append(header, "h"+strconv.Itoa(h))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, id := range s.PumpIDs() {
		row := []string{id}
		for _, v := range s[id] {
			row = append(row, strconv.Itoa(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScheduleJSON writes the schedule as an object keyed by pump id.
func WriteScheduleJSON(w io.Writer, s model.Schedule) error {
	return json.NewEncoder(w).Encode(s)
}

// ReadSchedule decodes a schedule from YAML or JSON.
func ReadSchedule(r io.Reader) (model.Schedule, error) {
	var s model.Schedule
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	for id, values := range s {
		for h, v := range values {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("pump %s hour %d: %w", id, h, model.ErrInvalidControlValue)
			}
		}
	}
	return s, nil
}

// ReadScheduleFile reads a schedule file.
func ReadScheduleFile(path string) (model.Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadSchedule(f)
}

// WriteFile writes the result bundle to path. The format follows the file
// extension: .csv for CSV, JSON otherwise.
func WriteFile(path string, res model.Results) error {
	return writeFile(path, func(f *os.File) error {
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			return WriteCSV(f, res)
		}
		return WriteJSON(f, res)
	})
}

// WriteScheduleFile writes a schedule to path, as CSV or JSON by extension.
func WriteScheduleFile(path string, s model.Schedule) error {
	return writeFile(path, func(f *os.File) error {
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			return WriteScheduleCSV(f, s)
		}
		return WriteScheduleJSON(f, s)
	})
}

func writeFile(path string, write func(*os.File) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
