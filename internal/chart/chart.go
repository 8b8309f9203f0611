// Package chart picks a chart type for a query result and describes it as a Vega-Lite spec.
package chart

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Chart kinds.
const (
	KindNone    = "none"
	KindBar     = "bar"
	KindLine    = "line"
	KindPie     = "pie"
	KindScatter = "scatter"
	KindHeatmap = "heatmap"
)

// SchemaURL is the Vega-Lite schema every spec declares.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// maxPieSlices is the most distinct categories a pie chart may show.
const maxPieSlices = 8

// Chart is a chosen visualization.
type Chart struct {
	Kind string                 `json:"kind"`
	Spec map[string]interface{} `json:"spec,omitempty"`
}

// JSON returns the Vega-Lite spec as JSON.
func (c *Chart) JSON() ([]byte, error) {
	return json.Marshal(c.Spec)
}

type columnClass int

const (
	classOther columnClass = iota
	classNumeric
	classTemporal
	classCategorical
)

type profile struct {
	numeric     []string
	temporal    []string
	categorical []string
}

// Auto picks a chart for res: line for a date column with a number, heatmap for two
// categories with a number, bar for one category with a number, scatter for two numbers.
// A result that fits none of these, or has no rows, gets KindNone.
func Auto(res *models.QueryResult) *Chart {
	if res == nil || len(res.Rows) == 0 {
		return &Chart{Kind: KindNone}
	}
	p := profileColumns(res)
	switch {
	case len(p.temporal) >= 1 && len(p.numeric) >= 1:
		return build(KindLine, res, p.temporal[0], p.numeric[0], "")
	case len(p.categorical) >= 2 && len(p.numeric) >= 1:
		return build(KindHeatmap, res, p.categorical[0], p.categorical[1], p.numeric[0])
	case len(p.categorical) == 1 && len(p.numeric) >= 1:
		return build(KindBar, res, p.categorical[0], p.numeric[0], "")
	case len(p.numeric) >= 2:
		return build(KindScatter, res, p.numeric[0], p.numeric[1], "")
	default:
		return &Chart{Kind: KindNone}
	}
}

// Build returns a chart of the requested kind, or an error when res cannot be shown that way.
// KindPie needs a categorical column with at most eight distinct values and a numeric column.
func Build(res *models.QueryResult, kind string) (*Chart, error) {
	if kind == "" || kind == "auto" {
		return Auto(res), nil
	}
	if res == nil || len(res.Rows) == 0 {
		return nil, fmt.Errorf("cannot draw %s chart: no rows", kind)
	}
	p := profileColumns(res)
	switch kind {
	case KindPie:
		if len(p.categorical) == 0 || len(p.numeric) == 0 {
			return nil, fmt.Errorf("pie chart needs a categorical and a numeric column")
		}
		if n := distinct(res, p.categorical[0]); n > maxPieSlices {
			return nil, fmt.Errorf("pie chart allows at most %d categories, got %d", maxPieSlices, n)
		}
		return build(KindPie, res, p.categorical[0], p.numeric[0], ""), nil
	case KindLine:
		if len(p.temporal) == 0 || len(p.numeric) == 0 {
			return nil, fmt.Errorf("line chart needs a date and a numeric column")
		}
		return build(KindLine, res, p.temporal[0], p.numeric[0], ""), nil
	case KindBar:
		x := append(append([]string{}, p.categorical...), p.temporal...)
		if len(x) == 0 || len(p.numeric) == 0 {
			return nil, fmt.Errorf("bar chart needs a categorical and a numeric column")
		}
		return build(KindBar, res, x[0], p.numeric[0], ""), nil
	case KindScatter:
		if len(p.numeric) < 2 {
			return nil, fmt.Errorf("scatter chart needs two numeric columns")
		}
		return build(KindScatter, res, p.numeric[0], p.numeric[1], ""), nil
	case KindHeatmap:
		if len(p.categorical) < 2 || len(p.numeric) == 0 {
			return nil, fmt.Errorf("heatmap needs two categorical columns and a numeric column")
		}
		return build(KindHeatmap, res, p.categorical[0], p.categorical[1], p.numeric[0]), nil
	default:
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}
}

func build(kind string, res *models.QueryResult, a, b, c string) *Chart {
	spec := map[string]interface{}{
		"$schema": SchemaURL,
		"data":    map[string]interface{}{"values": res.Rows},
	}
	switch kind {
	case KindBar:
		spec["mark"] = "bar"
		spec["encoding"] = map[string]interface{}{
			"x": field(a, "nominal"),
			"y": field(b, "quantitative"),
		}
	case KindLine:
		spec["mark"] = map[string]interface{}{"type": "line", "point": true}
		spec["encoding"] = map[string]interface{}{
			"x": field(a, "temporal"),
			"y": field(b, "quantitative"),
		}
	case KindPie:
		spec["mark"] = "arc"
		spec["encoding"] = map[string]interface{}{
			"theta": field(b, "quantitative"),
			"color": field(a, "nominal"),
		}
	case KindScatter:
		spec["mark"] = "point"
		spec["encoding"] = map[string]interface{}{
			"x": field(a, "quantitative"),
			"y": field(b, "quantitative"),
		}
	case KindHeatmap:
		spec["mark"] = "rect"
		spec["encoding"] = map[string]interface{}{
			"x":     field(a, "nominal"),
			"y":     field(b, "nominal"),
			"color": field(c, "quantitative"),
		}
	}
	return &Chart{Kind: kind, Spec: spec}
}

func field(name, typ string) map[string]interface{} {
	return map[string]interface{}{"field": name, "type": typ}
}

func profileColumns(res *models.QueryResult) profile {
	var p profile
	for _, col := range res.Columns {
		switch classify(col, res.Rows) {
		case classNumeric:
			p.numeric = append(p.numeric, col)
		case classTemporal:
			p.temporal = append(p.temporal, col)
		case classCategorical:
			p.categorical = append(p.categorical, col)
		}
	}
	return p
}

// classify looks at every non-null value of col. Identifier-like numeric columns ("id",
// "*_id") are not treated as measures.
func classify(col string, rows []map[string]interface{}) columnClass {
	numeric, temporal, text, seen := true, true, true, 0
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		seen++
		switch x := v.(type) {
		case int, int32, int64, float32, float64:
			temporal, text = false, false
		case time.Time:
			numeric, text = false, false
		case bool:
			return classOther
		case string:
			if _, err := strconv.ParseFloat(x, 64); err != nil {
				numeric = false
			}
			if !looksLikeDate(x) {
				temporal = false
			}
		default:
			return classOther
		}
	}
	if seen == 0 {
		return classOther
	}
	lower := strings.ToLower(col)
	switch {
	case temporal:
		return classTemporal
	case numeric:
		if lower == "id" || strings.HasSuffix(lower, "_id") {
			return classOther
		}
		return classNumeric
	case text:
		return classCategorical
	default:
		return classOther
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func looksLikeDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func distinct(res *models.QueryResult, col string) int {
	seen := make(map[string]struct{})
	for _, row := range res.Rows {
		seen[fmt.Sprint(row[col])] = struct{}{}
	}
	return len(seen)
}
