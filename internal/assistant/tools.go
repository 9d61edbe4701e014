package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridsage/gridsage/internal/datafeed"
	"github.com/gridsage/gridsage/internal/llm"
	"github.com/gridsage/gridsage/internal/market"
	"github.com/gridsage/gridsage/pkg/utils"
)

// dataRow is one row of the fetch_energy_data table.
type dataRow struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// errorRow is the in-band failure shape the model can read and relay.
type errorRow struct {
	Error string `json:"error"`
}

// FetchEnergyDataTool wraps curve resolution and fetch as a model tool.
// It never returns a Go error across the tool boundary: every failure
// becomes a single-element list with an "error" key. svc may be nil when
// provider credentials are missing.
func FetchEnergyDataTool(svc *market.Service) llm.Tool {
	return llm.Tool{
		Name: "fetch_energy_data",
		Description: "Retrieves historical time series data for a date range. " +
			"Use \"pri de spot €/mwh cet h a\" for Electricity Germany Spot. " +
			"Use \"gas pri nl ttf da clo eex €/mwh cet d a\" for Gas Netherlands TTF.",
		Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
			"curve_name": llm.StringProp("The technical name of the curve."),
			"start_date": llm.StringProp("Start date in 'YYYY-MM-DD' format (e.g., '2022-07-01')."),
			"end_date":   llm.StringProp("End date in 'YYYY-MM-DD' format (e.g., '2022-10-01')."),
		}, "curve_name", "start_date", "end_date"),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			if svc == nil {
				return marshalRows([]errorRow{{Error: "insight session not initialized"}})
			}

			var in struct {
				CurveName string `json:"curve_name"`
				StartDate string `json:"start_date"`
				EndDate   string `json:"end_date"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return marshalRows([]errorRow{{Error: "invalid arguments: " + err.Error()}})
			}

			from, err := utils.ParseDate(in.StartDate)
			if err != nil {
				return marshalRows([]errorRow{{Error: "invalid start_date: " + in.StartDate}})
			}
			to, err := utils.ParseDate(in.EndDate)
			if err != nil {
				return marshalRows([]errorRow{{Error: "invalid end_date: " + in.EndDate}})
			}

			out := svc.FetchSeries(ctx, in.CurveName, from, to)
			if out.Failed() {
				return marshalRows([]errorRow{{Error: fmt.Sprintf("Error retrieving data: %v", out.Err)}})
			}

			rows := make([]dataRow, 0, out.Series.Len())
			for _, p := range out.Series.Points {
				row := dataRow{Date: utils.FormatDateTime(p.Time)}
				if cleaned := CleanForJSON(p.Value); cleaned != nil {
					v := cleaned.(float64)
					row.Value = &v
				}
				rows = append(rows, row)
			}
			return marshalRows(rows)
		},
	}
}

// WebSearchTool exposes datafeed web search to the model.
func WebSearchTool(search *datafeed.WebSearch) llm.Tool {
	return llm.Tool{
		Name:        "web_search",
		Description: "Searches the web and returns titles, links and snippets for a query.",
		Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
			"query": llm.StringProp("The search query."),
		}, "query"),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return marshalRows([]errorRow{{Error: "invalid arguments: " + err.Error()}})
			}

			results, err := search.Search(ctx, in.Query, 5)
			if err != nil {
				return marshalRows([]errorRow{{Error: "search failed: " + err.Error()}})
			}
			data, err := json.Marshal(results)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// EnergyNewsTool exposes the energy news feed to the model.
func EnergyNewsTool(news *datafeed.News) llm.Tool {
	return llm.Tool{
		Name:        "get_energy_news",
		Description: "Returns recent European energy market headlines, newest first.",
		Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
			"limit": llm.IntProp("Maximum number of headlines to return."),
		}),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Limit int `json:"limit"`
			}
			_ = json.Unmarshal(args, &in)
			if in.Limit <= 0 {
				in.Limit = 10
			}

			items, err := news.Headlines(ctx, in.Limit)
			if err != nil {
				return marshalRows([]errorRow{{Error: "news fetch failed: " + err.Error()}})
			}
			data, err := json.Marshal(items)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

func marshalRows(rows any) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
