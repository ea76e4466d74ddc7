package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapdriver/pkg/driver"
)

// resultData is a result set drained into memory for rendering.
type resultData struct {
	cols []string
	rows [][]driver.Value
}

func drain(rs *driver.ResultSet) (*resultData, error) {
	desc := rs.Descriptor()
	data := &resultData{cols: make([]string, desc.ColumnCount())}
	for i, c := range desc.Columns() {
		data.cols[i] = c.Name
	}

	if err := rs.BeforeFirst(); err != nil {
		return nil, err
	}
	for {
		ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := make([]driver.Value, len(data.cols))
		for i := range row {
			v, err := rs.GetValue(i + 1)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		data.rows = append(data.rows, row)
	}
	return data, nil
}

func renderResultSet(w io.Writer, rs *driver.ResultSet, format string) error {
	data, err := drain(rs)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return renderJSON(w, data)
	case "csv":
		newTable(w, data).RenderCSV()
		return nil
	case "md", "markdown":
		if len(data.rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		newTable(w, data).RenderMarkdown()
		return nil
	default:
		return renderTable(w, data)
	}
}

func newTable(w io.Writer, data *resultData) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(data.cols))
	for i, col := range data.cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, values := range data.rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = v.String()
		}
		t.AppendRow(row)
	}
	return t
}

func renderTable(w io.Writer, data *resultData) error {
	if len(data.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newTable(w, data)
	t.SetStyle(table.StyleLight)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(data.rows))
	return nil
}

func renderJSON(w io.Writer, data *resultData) error {
	results := make([]map[string]any, 0, len(data.rows))
	for _, values := range data.rows {
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[data.cols[i]] = jsonValue(v)
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// jsonValue converts v into something encoding/json accepts. Non-finite
// floats have no JSON form and are rendered as strings.
func jsonValue(v driver.Value) any {
	switch x := v.Any().(type) {
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return v.String()
		}
	case float32:
		if math.IsInf(float64(x), 0) || math.IsNaN(float64(x)) {
			return v.String()
		}
	case []byte:
		return v.String()
	}
	return v.Any()
}

func renderCount(w io.Writer, n int64, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]int64{"affected": n})
	}
	_, _ = fmt.Fprintf(w, "(%d rows affected)\n", n)
	return nil
}
