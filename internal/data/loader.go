// Package data reads column-text scattering measurements and prepares them for fitting
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/config"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// LoadFile opens path and reads it with Load
func LoadFile(path string, cfg config.ReadConfig) (*models.MeasurementData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open measurement file %s: %v", models.ErrConfiguration, path, err)
	}
	defer f.Close()
	m, err := Load(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("measurement file %s: %w", path, err)
	}
	return m, nil
}

// Load reads a measurement table and prepares it: rows are mapped to columns by
// cfg.Columns, the first cfg.SkipRows lines and lines starting with '#' are ignored, and
// the result is clipped, filtered and validated by Prepare.
func Load(r io.Reader, cfg config.ReadConfig) (*models.MeasurementData, error) {
	if len(cfg.Columns) == 0 {
		cfg.Columns = config.DefaultColumns
	}
	rows, err := readRows(r, cfg)
	if err != nil {
		return nil, err
	}

	raw := &models.MeasurementData{}
	hasQy := false
	for _, c := range cfg.Columns {
		if c == "Qy" {
			hasQy = true
			raw.Qy = make([]float64, 0, len(rows))
		}
	}
	for _, row := range rows {
		if len(row.fields) < len(cfg.Columns) {
			return nil, fmt.Errorf("%w: line %d has %d columns, expected %d",
				models.ErrConfiguration, row.line, len(row.fields), len(cfg.Columns))
		}
		var q, qy, i, sigma float64
		for col, name := range cfg.Columns {
			if name == "skip" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row.fields[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", models.ErrConfiguration, row.line, name, err)
			}
			switch name {
			case "Q":
				q = v
			case "Qy":
				qy = v
			case "I":
				i = v
			case "ISigma":
				sigma = v
			}
		}
		raw.Q = append(raw.Q, q)
		raw.I = append(raw.I, i)
		raw.ISigma = append(raw.ISigma, sigma)
		if hasQy {
			raw.Qy = append(raw.Qy, qy)
		}
	}
	return Prepare(raw, cfg)
}

type row struct {
	line   int
	fields []string
}

func readRows(r io.Reader, cfg config.ReadConfig) ([]row, error) {
	if cfg.Delimiter == "" {
		return readWhitespace(r, cfg.SkipRows)
	}
	delim := []rune(cfg.Delimiter)
	if len(delim) != 1 {
		return nil, fmt.Errorf("%w: delimiter must be a single character, got %q", models.ErrConfiguration, cfg.Delimiter)
	}

	cr := csv.NewReader(r)
	cr.Comma = delim[0]
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []row
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
		}
		line, _ := cr.FieldPos(0)
		if skipped < cfg.SkipRows {
			skipped++
			continue
		}
		rows = append(rows, row{line: line, fields: rec})
	}
	return rows, nil
}

func readWhitespace(r io.Reader, skipRows int) ([]row, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read measurement: %w", err)
	}
	var rows []row
	skipped := 0
	for n, line := range strings.Split(string(text), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if skipped < skipRows {
			skipped++
			continue
		}
		rows = append(rows, row{line: n + 1, fields: fields})
	}
	return rows, nil
}

// Prepare returns a copy of m restricted to cfg.QMin ≤ |Q| < cfg.QMax (no upper limit
// when QMax is 0), without points inside any omitted Q range and without non-finite
// rows. Uncertainties are raised to at least cfg.IEmin·|I|. The result is validated.
func Prepare(m *models.MeasurementData, cfg config.ReadConfig) (*models.MeasurementData, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no measurement", models.ErrConfiguration)
	}
	qs := m.QMagnitude()
	out := &models.MeasurementData{}
	if m.Is2D() {
		out.Qy = []float64{}
	}
	for k := range m.I {
		q := qs[k]
		if !keepRow(m, k) || q < cfg.QMin || (cfg.QMax > 0 && q >= cfg.QMax) || omitted(q, cfg.OmitQRanges) {
			continue
		}
		sigma := math.Max(m.ISigma[k], cfg.IEmin*math.Abs(m.I[k]))
		out.Q = append(out.Q, m.Q[k])
		out.I = append(out.I, m.I[k])
		out.ISigma = append(out.ISigma, sigma)
		if m.Is2D() {
			out.Qy = append(out.Qy, m.Qy[k])
		}
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("prepared measurement: %w", err)
	}
	return out, nil
}

func keepRow(m *models.MeasurementData, k int) bool {
	vals := []float64{m.Q[k], m.I[k], m.ISigma[k]}
	if m.Is2D() {
		vals = append(vals, m.Qy[k])
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func omitted(q float64, ranges [][]float64) bool {
	for _, r := range ranges {
		if len(r) == 2 && q >= r[0] && q <= r[1] {
			return true
		}
	}
	return false
}
