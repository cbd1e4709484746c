package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"sheetdb/internal/sheet"
)

// numericOIDs are the column types read back as number cells.
var numericOIDs = map[uint32]bool{
	20:   true, // int8
	21:   true, // int2
	23:   true, // int4
	700:  true, // float4
	701:  true, // float8
	1700: true, // numeric
}

// ImportTable reads every row of a public table into a sheet table. NULLs
// become empty cells; integer, float and numeric columns become numbers.
func (d *DB) ImportTable(ctx context.Context, name string) (*sheet.Table, error) {
	exists, err := d.TableExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check table %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s does not exist", name)
	}

	sql := "SELECT * FROM " + pgx.Identifier{name}.Sanitize()
	rows, err := d.Conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = f.Name
	}

	var cells [][]sheet.Cell
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]sheet.Cell, len(values))
		for i, v := range values {
			row[i] = toCell(v, numericOIDs[fields[i].DataTypeOID])
		}
		cells = append(cells, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sheet.NewTable(headers, cells), nil
}

func toCell(v any, numeric bool) sheet.Cell {
	switch n := v.(type) {
	case nil:
		return sheet.Text("")
	case int64:
		return sheet.Number(float64(n))
	case int32:
		return sheet.Number(float64(n))
	case int16:
		return sheet.Number(float64(n))
	case float32:
		return sheet.Number(float64(n))
	case float64:
		return sheet.Number(n)
	case pgtype.Numeric:
		if f, err := n.Float64Value(); err == nil && f.Valid {
			return sheet.Number(f.Float64)
		}
		return sheet.Text("")
	}
	s := fmt.Sprintf("%v", v)
	if numeric {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return sheet.Number(f)
		}
	}
	return sheet.Text(s)
}
