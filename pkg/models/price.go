package models

// Area codes for the supported European bidding zones, in grid order.
var Areas = []string{
	"ch", "de", "fr", "at", "it", "nl", "be",
	"dk1", "no2", "se3", "fi", "pl", "es", "uk",
}

// HourPrices holds one hour slot of the European price grid. A nil value
// means the source had no price for that area and hour.
type HourPrices struct {
	Hour   int                 `json:"hour"`
	Prices map[string]*float64 `json:"prices"`
}

// PriceGrid is the response body of the European prices endpoint:
// exactly 24 hour slots, each with one entry per area.
type PriceGrid struct {
	Date    string       `json:"date"`
	Run     string       `json:"run"`
	Unit    string       `json:"unit"`
	Hours   []HourPrices `json:"hours"`
	Missing []string     `json:"missing"`
}
