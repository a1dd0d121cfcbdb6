package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"randomcoffee/internal/logging"
	"randomcoffee/internal/models"
	"randomcoffee/internal/repositories"
)

// ImportRow is one pre-known employee.
type ImportRow struct {
	Line       int
	TelegramID int64
	Username   string
	Payload    map[string]any
}

type ImportReport struct {
	Rows     int
	Created  int
	Existing int
	Errors   []string
}

// Importer loads employees from a spreadsheet as import-origin accounts.
type Importer struct {
	store repositories.Store
	log   logging.Logger
	now   func() time.Time
}

func NewImporter(store repositories.Store, log logging.Logger) *Importer {
	return &Importer{store: store, log: log, now: time.Now}
}

// ImportFile reads .xlsx (first sheet) or .csv by extension.
func (i *Importer) ImportFile(ctx context.Context, path string) (ImportReport, error) {
	var (
		table [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		table, err = readXLSX(path)
	case ".csv":
		var f *os.File
		if f, err = os.Open(path); err == nil {
			table, err = ReadCSV(f)
			_ = f.Close()
		}
	default:
		return ImportReport{}, fmt.Errorf("unsupported import file %q", path)
	}
	if err != nil {
		return ImportReport{}, err
	}

	rows, problems := ParseImportTable(table)
	report, err := i.Import(ctx, rows)
	report.Errors = append(problems, report.Errors...)
	report.Rows += len(problems)
	return report, err
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("xlsx %q has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// ParseImportTable expects a header row with telegram_id. username is optional, name is accepted
// for profile_name, and every other column goes to the payload as is.
func ParseImportTable(table [][]string) ([]ImportRow, []string) {
	if len(table) == 0 {
		return nil, []string{"empty table"}
	}
	header := make([]string, len(table[0]))
	idCol := -1
	for c, h := range table[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "name" {
			h = "profile_name"
		}
		header[c] = h
		if h == "telegram_id" {
			idCol = c
		}
	}
	if idCol < 0 {
		return nil, []string{"header has no telegram_id column"}
	}

	var (
		rows     []ImportRow
		problems []string
	)
	for n, rec := range table[1:] {
		line := n + 2
		if idCol >= len(rec) || strings.TrimSpace(rec[idCol]) == "" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil || id <= 0 {
			problems = append(problems, fmt.Sprintf("line %d: bad telegram_id %q", line, rec[idCol]))
			continue
		}
		row := ImportRow{Line: line, TelegramID: id, Payload: map[string]any{}}
		for c, v := range rec {
			v = strings.TrimSpace(v)
			if c >= len(header) || c == idCol || header[c] == "" || v == "" {
				continue
			}
			if header[c] == "username" {
				row.Username = strings.TrimPrefix(v, "@")
				continue
			}
			row.Payload[header[c]] = v
		}
		rows = append(rows, row)
	}
	return rows, problems
}

// Import upserts all rows in one transaction. Accounts that registered themselves are left alone.
func (i *Importer) Import(ctx context.Context, rows []ImportRow) (ImportReport, error) {
	report := ImportReport{Rows: len(rows)}
	now := i.now().UTC()
	err := i.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		for _, row := range rows {
			a := models.NewAccount(row.TelegramID, row.Username, now)
			a.Origin = models.OriginImport
			a.ImportPayload = row.Payload
			created, err := r.Accounts.UpsertImported(ctx, a)
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			if created {
				report.Created++
			} else {
				report.Existing++
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{Rows: len(rows), Errors: []string{err.Error()}}, err
	}
	i.log.Info(ctx, "import done", "rows", report.Rows, "created", report.Created, "existing", report.Existing)
	return report, nil
}
