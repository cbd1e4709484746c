package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Cell is a single table value: text, or a number parsed from a workbook.
type Cell struct {
	text     string
	num      float64
	isNumber bool
}

// Text returns a text cell.
func Text(s string) Cell {
	return Cell{text: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{text: strconv.FormatFloat(f, 'f', -1, 64), num: f, isNumber: true}
}

// IsNumber reports whether the cell holds a number.
func (c Cell) IsNumber() bool {
	return c.isNumber
}

// Float returns the numeric value and whether the cell is numeric.
func (c Cell) Float() (float64, bool) {
	return c.num, c.isNumber
}

// String returns the textual form used for display, search and sort.
func (c Cell) String() string {
	return c.text
}

// IsEmpty reports whether the cell is the empty string.
func (c Cell) IsEmpty() bool {
	return !c.isNumber && c.text == ""
}

// MarshalJSON encodes numbers as JSON numbers and everything else as strings.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.isNumber {
		return json.Marshal(c.num)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Text("")
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*c = Text(string(data))
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid cell value %s", data)
		}
		*c = Number(f)
	}
	return nil
}

// Texts builds a row of text cells.
func Texts(values ...string) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = Text(v)
	}
	return cells
}
