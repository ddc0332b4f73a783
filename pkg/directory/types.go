package directory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LocationQuery identifies a place by name, coordinates, or both.
type LocationQuery struct {
	Name string
	Lat  *float64
	Lon  *float64
}

// String renders the query for logs and errors.
func (q LocationQuery) String() string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, strconv.Quote(q.Name))
	}
	if q.Lat != nil && q.Lon != nil {
		parts = append(parts, fmt.Sprintf("(%g, %g)", *q.Lat, *q.Lon))
	}
	if len(parts) == 0 {
		return "<empty query>"
	}
	return strings.Join(parts, " ")
}

// LocationID is the directory's numeric city id (e.g. 787 for Baltimore).
type LocationID int

// Category is the directory's restaurant service type.
type Category int

const (
	CategoryDelivery  Category = 1
	CategoryDineOut   Category = 2
	CategoryNightlife Category = 3
)

// String returns the category name used in configuration.
func (c Category) String() string {
	switch c {
	case CategoryDelivery:
		return "delivery"
	case CategoryDineOut:
		return "dine-out"
	case CategoryNightlife:
		return "nightlife"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory accepts a category name or its numeric code.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delivery", "1":
		return CategoryDelivery, nil
	case "dine-out", "dineout", "dine_out", "2":
		return CategoryDineOut, nil
	case "nightlife", "3":
		return CategoryNightlife, nil
	default:
		return 0, fmt.Errorf("unknown category %q (want delivery, dine-out or nightlife)", s)
	}
}

// SearchPage is one search response.
type SearchPage struct {
	// Offset is the "start" the page was requested at.
	Offset int

	// ResultsShown is the number of results the page holds.
	ResultsShown int

	// Restaurants is the raw "restaurants" payload: null, one record or a
	// list of records.
	Restaurants json.RawMessage
}

// Record is an opaque restaurant record, forwarded as received.
type Record map[string]any

// Restaurant unwraps the {"restaurant": {...}} envelope the search endpoint
// puts around each record. Records without the envelope are returned as is.
func (r Record) Restaurant() Record {
	if inner, ok := r["restaurant"].(map[string]any); ok {
		return Record(inner)
	}
	return r
}

// ID returns the restaurant id from R.res_id, falling back to id.
// Returns "" when neither is present.
func (r Record) ID() string {
	body := r.Restaurant()
	if meta, ok := body["R"].(map[string]any); ok {
		if id := scalarString(meta["res_id"]); id != "" {
			return id
		}
	}
	return scalarString(body["id"])
}

// Name returns the restaurant name, or "".
func (r Record) Name() string {
	name, _ := r.Restaurant()["name"].(string)
	return name
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

// DailyMenu is a restaurant's daily menu document. Fields are declared in
// key order so the encoding matches the sorted-key sinks.
type DailyMenu struct {
	Menu         any    `json:"daily_menu"`
	RestaurantID string `json:"res_id"`
}
