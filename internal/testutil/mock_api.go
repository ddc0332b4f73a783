// Package testutil provides a mock upstream API server for harvester tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the directory and delivery APIs.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requests          []*url.URL
	lastRequestHeader http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		u := *r.URL
		mock.requests = append(mock.requests, &u)
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, `{"code": 404, "status": "", "message": "Not Found"}`)
	}))

	return mock
}

// URL returns the mock server URL, usable as a client base URL.
func (m *MockAPI) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		writeJSON(w, resp.StatusCode, resp.Body)
	})
}

// Requests returns the URLs received so far, in order.
func (m *MockAPI) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*url.URL, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsTo returns the URLs received for one path, in order.
func (m *MockAPI) RequestsTo(path string) []*url.URL {
	var out []*url.URL
	for _, u := range m.Requests() {
		if u.Path == path {
			out = append(out, u)
		}
	}
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// SetLocations answers /locations with one suggestion per city id.
func (m *MockAPI) SetLocations(cityIDs ...int) {
	suggestions := make([]map[string]any, 0, len(cityIDs))
	for _, id := range cityIDs {
		suggestions = append(suggestions, map[string]any{
			"entity_type": "city",
			"entity_id":   id,
			"city_id":     id,
			"city_name":   fmt.Sprintf("City %d", id),
		})
	}
	body, _ := json.Marshal(map[string]any{
		"location_suggestions": suggestions,
		"status":               "success",
		"has_more":             0,
	})
	m.SetResponse("/locations", NewHealthyResponse(string(body)))
}

// SetSearchPages answers /search by the "start" parameter. sizes maps an
// offset to the number of restaurants on that page; unknown offsets get an
// empty page. Restaurant ids are 1000+position.
func (m *MockAPI) SetSearchPages(resultsFound int, sizes map[int]int) {
	m.SetHandler("/search", func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		writeJSON(w, http.StatusOK, SearchPageBody(resultsFound, start, sizes[start]))
	})
}

// SetDailyMenus answers /dailymenu. Restaurants listed in menus get a
// daily_menu document; all others get the upstream's 400 "No Daily Menu
// Available" error.
func (m *MockAPI) SetDailyMenus(menus map[string]string) {
	m.SetHandler("/dailymenu", func(w http.ResponseWriter, r *http.Request) {
		menu, ok := menus[r.URL.Query().Get("res_id")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, `{"code": 400, "status": "Bad Request", "message": "No Daily Menu Available"}`)
			return
		}
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"daily_menu": %s, "status": "success"}`, menu))
	})
}

// SetDeliverySearch answers /restaurant/search with one restaurant per api
// key, named "Delivery <key>".
func (m *MockAPI) SetDeliverySearch(apiKeys ...string) {
	restaurants := make([]map[string]any, 0, len(apiKeys))
	for _, key := range apiKeys {
		restaurants = append(restaurants, map[string]any{
			"apiKey":         key,
			"name":           "Delivery " + key,
			"city":           "Baltimore",
			"state":          "MD",
			"foodTypes":      []string{"Crabs", "Seafood"},
			"offersPickup":   true,
			"offersDelivery": true,
		})
	}
	body, _ := json.Marshal(map[string]any{
		"address":     map[string]any{"city": "Baltimore", "state": "MD"},
		"restaurants": restaurants,
	})
	m.SetResponse("/restaurant/search", NewHealthyResponse(string(body)))
}

// SetDeliveryMenu answers /restaurant/{apiKey}/menu with one item per
// category name.
func (m *MockAPI) SetDeliveryMenu(apiKey string, categories ...string) {
	menu := make([]map[string]any, 0, len(categories))
	for i, name := range categories {
		menu = append(menu, map[string]any{
			"apiKey": fmt.Sprintf("%s-c%d", apiKey, i),
			"name":   name,
			"items": []map[string]any{{
				"apiKey":    fmt.Sprintf("%s-c%d-i0", apiKey, i),
				"name":      name + " special",
				"basePrice": 9.5,
			}},
		})
	}
	body, _ := json.Marshal(menu)
	m.SetResponse("/restaurant/"+apiKey+"/menu", NewHealthyResponse(string(body)))
}

// SearchPageBody builds a search response holding n restaurants starting
// at position start.
func SearchPageBody(resultsFound, start, n int) string {
	restaurants := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		restaurants = append(restaurants, RestaurantEnvelope(1000+start+i))
	}
	body, _ := json.Marshal(map[string]any{
		"results_found": resultsFound,
		"results_start": start,
		"results_shown": n,
		"restaurants":   restaurants,
	})
	return string(body)
}

// RestaurantEnvelope builds one {"restaurant": {...}} search entry.
func RestaurantEnvelope(id int) map[string]any {
	return map[string]any{
		"restaurant": map[string]any{
			"R":        map[string]any{"res_id": id},
			"id":       strconv.Itoa(id),
			"name":     fmt.Sprintf("Restaurant %d", id),
			"cuisines": "American, Seafood",
			"location": map[string]any{
				"city":      "Baltimore",
				"latitude":  "39.2904",
				"longitude": "-76.6122",
			},
		},
	}
}

// NewHealthyResponse creates a standard 200 OK response with quota headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "1000",
			"X-RateLimit-Remaining": "999",
			"X-RateLimit-Reset":     "86400",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code": 500, "status": "", "message": "Internal server error"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with the
// quota exhausted.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code": 429, "status": "", "message": "API limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "1000",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "3600",
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}
