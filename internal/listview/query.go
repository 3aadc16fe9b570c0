package listview

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

const (
	ParamPage      = "page"
	ParamLimit     = "limit"
	ParamSortBy    = "sortBy"
	ParamSortOrder = "sortOrder"
	ParamSearch    = "search"
)

var reservedKeys = map[string]struct{}{
	ParamPage:      {},
	ParamLimit:     {},
	ParamSortBy:    {},
	ParamSortOrder: {},
	ParamSearch:    {},
}

// IsReservedKey reports whether key collides with a query parameter the
// controller owns.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Query is the canonical request for one page of a list.
type Query struct {
	Page      int             `json:"page"`
	Limit     int             `json:"limit"`
	SortBy    string          `json:"sortBy,omitempty"`
	SortOrder enums.SortOrder `json:"sortOrder"`
	Search    string          `json:"search,omitempty"`
	Filters   map[string]any  `json:"filters,omitempty"`
	// Revision grows with every change of the query. It is not part of Key.
	Revision  uint64          `json:"-"`
}

// Values renders the query as backend URL parameters. Sort parameters are
// omitted without a sort field; active filters are flattened alongside.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set(ParamPage, strconv.Itoa(q.Page))
	v.Set(ParamLimit, strconv.Itoa(q.Limit))
	if q.SortBy != "" {
		v.Set(ParamSortBy, q.SortBy)
		v.Set(ParamSortOrder, q.SortOrder.String())
	}
	if q.Search != "" {
		v.Set(ParamSearch, q.Search)
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if IsReservedKey(k) || !isActive(q.Filters[k]) {
			continue
		}
		for _, s := range flatten(q.Filters[k]) {
			v.Add(k, s)
		}
	}
	return v
}

// Key is a stable identity for change detection.
func (q Query) Key() string {
	return q.Values().Encode()
}

func isActive(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	}
	return true
}

func flatten(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case bool:
		return []string{strconv.FormatBool(t)}
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if isActive(item) {
				out = append(out, flatten(item)...)
			}
		}
		return out
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	default:
		return []string{fmt.Sprint(t)}
	}
}
