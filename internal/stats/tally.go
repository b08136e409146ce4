package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"memevo/internal/model"
)

// TallyFileName is the CSV file a named tally is written to.
func TallyFileName(name string) string {
	return name + "_overtime.csv"
}

// WriteTally writes the header row followed by one row per generation.
func WriteTally(runDir string, tally model.Tally) error {
	if tally.Name == "" {
		return fmt.Errorf("tally name is required")
	}
	file, err := os.Create(filepath.Join(runDir, TallyFileName(tally.Name)))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.UseCRLF = true
	if err := writer.Write(tally.Header); err != nil {
		return err
	}
	for _, row := range tally.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = strconv.Itoa(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTally(baseDir, runID, name string) (model.Tally, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, TallyFileName(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Tally{}, false, nil
		}
		return model.Tally{}, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return model.Tally{}, false, fmt.Errorf("tally %s is missing its header", name)
		}
		return model.Tally{}, false, err
	}

	tally := model.Tally{Name: name, Header: header, Rows: make([][]int, 0, 64)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Tally{}, false, err
		}
		row := make([]int, len(record))
		for i, field := range record {
			v, err := strconv.Atoi(field)
			if err != nil {
				return model.Tally{}, false, fmt.Errorf("tally %s row %d: %w", name, len(tally.Rows)+1, err)
			}
			row[i] = v
		}
		tally.Rows = append(tally.Rows, row)
	}
	return tally, true, nil
}
