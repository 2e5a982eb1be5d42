// Package spreadsheet reads lead imports from, and writes lead exports to, xlsx and csv files.
package spreadsheet

import (
	"encoding/csv"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/ud-systems/UD-Leads-sub001/core/lead"
)

// Formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const sheetName = "Leads"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, use .xlsx or .csv")
	ErrMissingHeader     = errors.New("the first row must name the columns, including store_name")

	// ExportColumns are written by WriteLeads; files written this way can be imported back.
	ExportColumns = append(append([]string{"id"}, lead.ImportColumns...), "status", "assigned_to", "created_at")

	ContentTypes = map[string]string{
		FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FormatCSV:  "text/csv",
	}
)

// FormatOf returns the format of filename, from its extension.
func FormatOf(filename string) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

// ReadLeads parses the lead rows of the file named filename.
// Columns are matched by header name, in any order; unknown columns are ignored and blank rows skipped.
func ReadLeads(r io.Reader, filename string) ([]lead.ImportRow, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		records, err = readCSV(r)
	}
	if err != nil {
		return nil, err
	}
	return toRows(records)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	return rows, errors.Wrap(err, "reading rows")
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	return records, errors.Wrap(err, "reading csv")
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func toRows(records [][]string) ([]lead.ImportRow, error) {
	if len(records) == 0 {
		return nil, ErrMissingHeader
	}
	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		if h = normalizeHeader(h); h != "" {
			if _, dup := cols[h]; !dup {
				cols[h] = i
			}
		}
	}
	if _, ok := cols["store_name"]; !ok {
		return nil, ErrMissingHeader
	}

	rows := make([]lead.ImportRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		cell := func(name string) string {
			if j, ok := cols[name]; ok && j < len(rec) {
				return strings.TrimSpace(rec[j])
			}
			return ""
		}
		row := lead.ImportRow{
			Line:           i + 2,
			StoreName:      cell("store_name"),
			ContactName:    cell("contact_name"),
			Email:          cell("email"),
			Phone:          cell("phone"),
			Address:        cell("address"),
			City:           cell("city"),
			PostalCode:     cell("postal_code"),
			Category:       cell("category"),
			Source:         cell("source"),
			TerritoryCode:  cell("territory_code"),
			EstimatedValue: cell("estimated_value"),
			Notes:          cell("notes"),
		}
		if row == (lead.ImportRow{Line: row.Line}) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func exportRecord(l lead.Lead, codes map[string]string) []string {
	return []string{
		l.ID,
		l.StoreName,
		l.ContactName,
		l.Email,
		l.Phone,
		l.Address,
		l.City,
		l.PostalCode,
		l.Category,
		l.Source,
		codes[l.TerritoryID],
		strconv.FormatFloat(l.EstimatedValue, 'f', -1, 64),
		l.Notes,
		l.Status,
		l.AssignedTo,
		l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// WriteLeads writes leads to w in format. codes maps territory IDs to their codes.
func WriteLeads(w io.Writer, format string, leads []lead.Lead, codes map[string]string) error {
	switch format {
	case FormatXLSX:
		return writeXLSX(w, leads, codes)
	case FormatCSV:
		return writeCSV(w, leads, codes)
	}
	return ErrUnsupportedFormat
}

func writeCSV(w io.Writer, leads []lead.Lead, codes map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, l := range leads {
		if err := cw.Write(exportRecord(l, codes)); err != nil {
			return errors.Wrap(err, "writing lead")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing csv")
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func writeXLSX(w io.Writer, leads []lead.Lead, codes map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return errors.Wrap(err, "creating stream writer")
	}
	if err := sw.SetColWidth(1, len(ExportColumns), 18); err != nil {
		return errors.Wrap(err, "setting column width")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err := sw.SetRow("A1", toCells(ExportColumns), excelize.RowOpts{StyleID: bold}); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for i, l := range leads {
		rec := exportRecord(l, codes)
		cells := toCells(rec)
		cells[11] = l.EstimatedValue // numeric cell
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "naming cell")
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return errors.Wrap(err, "writing lead")
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flushing sheet")
	}
	return errors.Wrap(f.Write(w), "writing workbook")
}
