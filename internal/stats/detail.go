package stats

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memevo/internal/model"
	"memevo/internal/organism"
)

var (
	simpleDetailHeader = []string{"Bits", "Decisions", "Memory", "Alive", "Id", "ParentId"}
	hybridDetailHeader = []string{"Bits", "SummaryBits", "Decisions", "Memory", "Summary", "Alive", "Id", "ParentId"}
)

// DetailFileName is the per-generation strategy file name.
func DetailFileName(generation int) string {
	return fmt.Sprintf("detail-%d.csv", generation)
}

// DetailWriter writes every snapshot it receives as a detail file in Dir.
type DetailWriter struct {
	Dir string
}

func (w DetailWriter) WriteSnapshot(_ context.Context, snapshot model.Snapshot) error {
	return WriteDetail(filepath.Join(w.Dir, DetailFileName(snapshot.Generation)), snapshot)
}

// WriteDetail writes one row per strategy in ledger order. Bit vectors are
// written as [True, False] lists and missing parents as None.
func WriteDetail(path string, snapshot model.Snapshot) error {
	hybrid := snapshot.Variant == "hybrid"

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.UseCRLF = true
	header := simpleDetailHeader
	if hybrid {
		header = hybridDetailHeader
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range snapshot.Strategies {
		var record []string
		if hybrid {
			record = []string{
				strconv.Itoa(s.MemoryBits),
				strconv.Itoa(s.SummaryBits),
				formatBoolList(s.Decisions),
				formatBoolList(s.InitialMemory),
				formatBoolList(s.InitialSummary),
			}
		} else {
			record = []string{
				strconv.Itoa(s.MemoryBits),
				formatBoolList(s.Decisions),
				formatBoolList(s.InitialMemory),
			}
		}
		record = append(record,
			strconv.Itoa(s.Alive),
			formatIDList(s.IDs),
			formatIDList(s.ParentIDs),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadDetail parses a detail file back into strategy records. Fingerprints
// are not part of the file and come back empty.
func ReadDetail(path string) ([]model.StrategyRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("detail file %s is empty", path)
		}
		return nil, err
	}
	hybrid := len(header) == len(hybridDetailHeader)
	if !hybrid && len(header) != len(simpleDetailHeader) {
		return nil, fmt.Errorf("detail file %s: unexpected header %v", path, header)
	}

	strategies := make([]model.StrategyRecord, 0, 16)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		strategy, err := parseDetailRecord(record, hybrid)
		if err != nil {
			return nil, fmt.Errorf("detail file %s row %d: %w", path, len(strategies)+1, err)
		}
		strategies = append(strategies, strategy)
	}
	return strategies, nil
}

func parseDetailRecord(record []string, hybrid bool) (model.StrategyRecord, error) {
	var s model.StrategyRecord
	var err error
	fields := record
	if s.MemoryBits, err = strconv.Atoi(fields[0]); err != nil {
		return s, err
	}
	fields = fields[1:]
	if hybrid {
		if s.SummaryBits, err = strconv.Atoi(fields[0]); err != nil {
			return s, err
		}
		fields = fields[1:]
	}
	if s.Decisions, err = parseBoolList(fields[0]); err != nil {
		return s, err
	}
	if s.InitialMemory, err = parseBoolList(fields[1]); err != nil {
		return s, err
	}
	fields = fields[2:]
	if hybrid {
		if s.InitialSummary, err = parseBoolList(fields[0]); err != nil {
			return s, err
		}
		fields = fields[1:]
	}
	if s.Alive, err = strconv.Atoi(fields[0]); err != nil {
		return s, err
	}
	if s.IDs, err = parseIDList(fields[1]); err != nil {
		return s, err
	}
	if s.ParentIDs, err = parseIDList(fields[2]); err != nil {
		return s, err
	}
	return s, nil
}

func formatBoolList(bits string) string {
	items := make([]string, len(bits))
	for i := 0; i < len(bits); i++ {
		if bits[i] == '1' {
			items[i] = "True"
		} else {
			items[i] = "False"
		}
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func formatIDList(ids []int64) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		if id == organism.NoParent {
			items[i] = "None"
			continue
		}
		items[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func splitList(field string) ([]string, error) {
	field = strings.TrimSpace(field)
	if !strings.HasPrefix(field, "[") || !strings.HasSuffix(field, "]") {
		return nil, fmt.Errorf("malformed list %q", field)
	}
	inner := strings.TrimSpace(field[1 : len(field)-1])
	if inner == "" {
		return nil, nil
	}
	items := strings.Split(inner, ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items, nil
}

func parseBoolList(field string) (string, error) {
	items, err := splitList(field)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, item := range items {
		switch item {
		case "True":
			b.WriteByte('1')
		case "False":
			b.WriteByte('0')
		default:
			return "", fmt.Errorf("malformed boolean %q", item)
		}
	}
	return b.String(), nil
}

func parseIDList(field string) ([]int64, error) {
	items, err := splitList(field)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item == "None" {
			ids = append(ids, organism.NoParent)
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
