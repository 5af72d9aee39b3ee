package sunlightmeter

import (
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/ztkent/lux-meter/tsl2561"
)

// Status of the sensor
func (m *SLMeter) ServeSensorStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Status{}
		if m.TSL2561 != nil {
			status.Connected = true
			status.JobID, status.Running = m.runningJob()

			m.sensorMu.Lock()
			status.Model = "TSL2561" + m.TSL2561.Model.String()
			status.Address = fmt.Sprintf("0x%02x", m.TSL2561.Address)
			status.Active = m.TSL2561.Active()
			status.Gain = tsl2561.GainToString(m.TSL2561.Gain())
			status.IntegrationTime = tsl2561.IntegrationTimeToString(m.TSL2561.IntegrationTime())
			m.sensorMu.Unlock()
		}
		serveJSON(w, http.StatusOK, status)
	}
}

// Serve a graph of the readings kept in memory
func (m *SLMeter) ServeResultsGraph() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := m.results().Snapshot()

		var luxValues []opts.LineData
		var timeValues []string
		var maxLux int
		for _, result := range results {
			if result.Saturated {
				continue
			}
			if result.Lux > float64(maxLux) {
				// Round up to the nearest 500
				maxLux = int(math.Ceil(result.Lux/500) * 500)
			}
			luxValues = append(luxValues, opts.LineData{Value: result.Lux})
			timeValues = append(timeValues, result.Time.Format("2006-01-02 15:04:05"))
		}
		if maxLux == 0 {
			maxLux = 500
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				PageTitle: "Lux Meter",
				Theme:     types.ThemeChalk,
			}),
			charts.WithXAxisOpts(opts.XAxis{
				Name: "Time",
			}),
			charts.WithYAxisOpts(opts.YAxis{
				Name: "Lux",
				Min:  "0",
				Max:  fmt.Sprintf("%d", maxLux),
			}),
			charts.WithTooltipOpts(opts.Tooltip{
				Show:      true,
				Trigger:   "axis",
				TriggerOn: "mousemove",
			}),
		)
		line.SetXAxis(timeValues).AddSeries("Lux", luxValues)

		page := components.NewPage()
		page.PageTitle = "Lux Meter"
		page.AddCharts(line)

		w.Header().Set("Content-Type", "text/html")
		if err := page.Render(w); err != nil {
			m.Log.WithError(err).Error("Failed to render graph")
		}
	}
}

// Drop the readings kept in memory
func (m *SLMeter) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.results().Clear()
		ServeResponse(w, r, "Results cleared", http.StatusOK)
	}
}
