package gazetteer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Expected cities header: label,latitude,longitude,department_number.
// Expected hints header: city,code.

// LoadCities reads the municipality reference file and builds the Gazetteer.
// Rows with unparsable or non-finite coordinates are dropped with a warning;
// only an unreadable file or a missing column is an error.
func LoadCities(path string, logger *zap.Logger) (*Gazetteer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cities file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	rows, err := readCityRows(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read cities file %s: %w", path, err)
	}
	g := Build(rows)
	logger.Info("gazetteer loaded",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("entries", g.Len()),
	)
	return g, nil
}

func readCityRows(r io.Reader, logger *zap.Logger) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header, "label", "latitude", "longitude", "department_number")
	if err != nil {
		return nil, err
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) <= cols[3] {
			logger.Warn("short city row dropped", zap.Int("line", line))
			continue
		}
		name := strings.TrimSpace(record[cols[0]])
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[cols[1]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[cols[2]]), 64)
		if latErr != nil || lonErr != nil {
			logger.Warn("city row with bad coordinates dropped",
				zap.Int("line", line), zap.String("label", name))
			continue
		}
		rows = append(rows, Row{
			Name:           name,
			DepartmentCode: strings.TrimSpace(record[cols[3]]),
			Latitude:       lat,
			Longitude:      lon,
		})
	}
	return rows, nil
}

// LoadHints reads the popular-city fallback file. File order is priority
// order, so the result is a slice, never a map.
func LoadHints(path string, logger *zap.Logger) ([]Hint, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hints file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read hints header: %w", err)
	}
	cols, err := columnIndex(header, "city", "code")
	if err != nil {
		return nil, fmt.Errorf("hints file %s: %w", path, err)
	}

	var hints []Hint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hints file %s line %d: %w", path, line, err)
		}
		if len(record) <= cols[1] {
			logger.Warn("short hint row dropped", zap.Int("line", line))
			continue
		}
		hints = append(hints, Hint{
			Name:           strings.TrimSpace(record[cols[0]]),
			DepartmentCode: strings.TrimSpace(record[cols[1]]),
		})
	}
	logger.Info("popular city hints loaded", zap.String("path", path), zap.Int("hints", len(hints)))
	return hints, nil
}

func columnIndex(header []string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = -1
		for j, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), name) {
				idx[i] = j
				break
			}
		}
		if idx[i] == -1 {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}
