package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxCellWidth caps the display width of one cell in text output.
const maxCellWidth = 40

// WriteText renders the table as aligned columns. Widths are measured in
// terminal cells so country names with accents or CJK characters line up.
func WriteText(w io.Writer, normalized *Table) error {
	if normalized.NumCols() == 0 {
		_, err := fmt.Fprintln(w, "(empty table)")
		return err
	}

	widths := make([]int, normalized.NumCols())
	for i, column := range normalized.Columns {
		widths[i] = runewidth.StringWidth(column.Name)
	}
	cells := make([][]string, len(normalized.Rows))
	for rowIdx, row := range normalized.Rows {
		cells[rowIdx] = make([]string, len(row))
		for columnIdx, cell := range row {
			text := runewidth.Truncate(cell.String(), maxCellWidth, "…")
			cells[rowIdx][columnIdx] = text
			if width := runewidth.StringWidth(text); width > widths[columnIdx] {
				widths[columnIdx] = width
			}
		}
	}

	writeLine := func(values []string) error {
		padded := make([]string, len(values))
		for i, value := range values {
			padded[i] = runewidth.FillRight(value, widths[i])
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, "  "), " "))
		return err
	}

	if err := writeLine(normalized.ColumnNames()); err != nil {
		return err
	}
	separators := make([]string, len(widths))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	if err := writeLine(separators); err != nil {
		return err
	}
	for _, row := range cells {
		if err := writeLine(row); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", normalized.NumRows())
	return err
}

// WriteCSV renders the table as CSV with a header row. Missing cells are
// written as MissingText.
func WriteCSV(w io.Writer, normalized *Table) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(normalized.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, normalized.NumCols())
	for _, row := range normalized.Rows {
		for i, cell := range row {
			record[i] = cell.String()
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
