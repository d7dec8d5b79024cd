package excel

import (
	"bytes"
	"fmt"

	"relmap/application/ports"

	"github.com/xuri/excelize/v2"
)

const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Codec reads and writes xlsx workbooks, one sheet per table.
// The first row of a sheet is its header.
type Codec struct{}

// NewCodec creates an xlsx codec
func NewCodec() *Codec {
	return &Codec{}
}

// ContentType returns the xlsx MIME type
func (c *Codec) ContentType() string {
	return contentType
}

// Extension returns the file extension
func (c *Codec) Extension() string {
	return "xlsx"
}

// Encode writes every table to its own sheet
func (c *Codec) Encode(workbook *ports.Workbook) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, table := range workbook.Tables {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, table.Name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", table.Name, err)
			}
		} else if _, err := f.NewSheet(table.Name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", table.Name, err)
		}

		if err := writeTable(f, table, headerStyle); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every sheet as a table
func (c *Codec) Decode(data []byte) (*ports.Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	workbook := &ports.Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}

		table := ports.Table{Name: name}
		if len(rows) > 0 {
			table.Header = rows[0]
			table.Rows = rows[1:]
		}
		workbook.Tables = append(workbook.Tables, table)
	}
	return workbook, nil
}

func writeTable(f *excelize.File, table ports.Table, headerStyle int) error {
	sw, err := f.NewStreamWriter(table.Name)
	if err != nil {
		return fmt.Errorf("open sheet %q: %w", table.Name, err)
	}

	if err := sw.SetRow("A1", toCells(table.Header), excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("write header of %q: %w", table.Name, err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i+2, table.Name, err)
		}
	}

	return sw.Flush()
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
