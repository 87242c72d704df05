// Package chart is the optional reporting renderer (§4.L): it is not part of
// the engine core. It renders one security's Vorabpauschale history as a
// PNG, one candle per tax year, in the spirit of the teacher's
// internal/app/strategy candlestick renderer — here the "session" is a
// calendar year, "open"/"close" are ValueStart/ValueEnd, and volume carries
// the year's Tax instead of traded size.
package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pplcc/plotext/custplotter"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"abgeltungsteuer-engine/internal/engine/types"
)

// RenderVorabpauschaleHistory draws results (one per tax year, any order) as
// a PNG candlestick chart and returns the encoded image bytes.
func RenderVorabpauschaleHistory(results []types.AdvanceLumpSumResult, width, height int) ([]byte, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("chart: no results to render")
	}
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 400
	}

	var bars custplotter.TOHLCVs
	for _, r := range results {
		open := r.ValueStart.Float64()
		closeVal := r.ValueEnd.Float64()
		high, low := open, closeVal
		if high < low {
			high, low = low, high
		}
		bars = append(bars, struct {
			T, O, H, L, C, V float64
		}{
			T: float64(time.Date(r.Year, time.June, 15, 0, 0, 0, 0, time.UTC).Unix()),
			O: open,
			H: high,
			L: low,
			C: closeVal,
			V: r.Tax.Float64(),
		})
	}

	p := plot.New()
	p.Title.Text = "Vorabpauschale history"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006"}

	candles, err := custplotter.NewCandlesticks(bars)
	if err != nil {
		return nil, fmt.Errorf("chart: building candlesticks: %w", err)
	}
	p.Add(candles)

	var buf bytes.Buffer
	wt, err := p.WriterTo(vg.Length(width), vg.Length(height), "png")
	if err != nil {
		return nil, fmt.Errorf("chart: preparing writer: %w", err)
	}
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: rendering: %w", err)
	}
	return buf.Bytes(), nil
}
