package sink

import (
	"fmt"
	"sort"
	"strings"
)

// Key names the list or partition a harvest run writes into.
type Key struct {
	// Source is the upstream API, e.g. "zomato".
	Source string

	// Collection is the record kind, e.g. "restaurants" or "daily_menus".
	Collection string

	// Params identify the query (e.g. {"city": "787", "category": "2"}).
	Params map[string]string
}

// String generates a deterministic key.
// Format: harvest:source:collection:param1=val1:param2=val2
//
// Example:
//
//	harvest:zomato:restaurants:category=2:city=787
func (k Key) String() string {
	parts := []string{"harvest"}

	if s := strings.Trim(k.Source, ":"); s != "" {
		parts = append(parts, s)
	}
	if c := strings.Trim(k.Collection, ":"); c != "" {
		parts = append(parts, c)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	return strings.Join(parts, ":")
}
