package doro

import (
	"net/url"
	"strconv"
	"strings"
)

// SearchOptions adjust Search and SearchIDs. Passing nil means page 0
// with a page size of 10 and no sorting or filtering.
type SearchOptions struct {
	// PageNum is the zero-based page to return.
	PageNum int
	// PageSize is the number of results per page. Zero is refused
	// locally, because the server reserves it to mean "count only";
	// use Count for that. Negative means unlimited.
	PageSize int
	// SortFields orders results by the given field paths instead of
	// search relevance.
	SortFields []string
	// JSONFilter restricts which parts of each record are returned,
	// as the server's jsonFilter expression.
	JSONFilter string
}

// Search runs a query and returns the matching objects, in the order
// the server chose (relevance, or SortFields when given). The query
// string is the server's own field-path and boolean-operator grammar
// and is passed through untouched.
func (s *Session) Search(query string, opts *SearchOptions) ([]*Object, error) {
	values, err := searchValues(query, opts)
	if err != nil {
		return nil, err
	}
	values.Set("full", "true")
	v, err := s.doJason("GET", "/objects/", values, nil, "")
	if err != nil {
		return nil, err
	}
	records, err := v.GetObjectArray("results")
	if err != nil {
		return nil, err
	}
	objects := make([]*Object, 0, len(records))
	for _, rec := range records {
		o, err := s.decodeObject(rec)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, nil
}

// SearchIDs is Search returning only handles. Same semantics, lighter
// responses.
func (s *Session) SearchIDs(query string, opts *SearchOptions) ([]Handle, error) {
	values, err := searchValues(query, opts)
	if err != nil {
		return nil, err
	}
	values.Set("ids", "true")
	v, err := s.doJason("GET", "/objects/", values, nil, "")
	if err != nil {
		return nil, err
	}
	ids, err := v.GetStringArray("results")
	if err != nil {
		return nil, err
	}
	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		handles = append(handles, Handle{ID: id, session: s})
	}
	return handles, nil
}

// Count returns the total number of objects matching the query,
// regardless of pagination. It uses the server's count-only mode
// (pageSize zero).
func (s *Session) Count(query string) (int64, error) {
	values := url.Values{
		"query":    {query},
		"pageNum":  {"0"},
		"pageSize": {"0"},
	}
	v, err := s.doJason("GET", "/objects/", values, nil, "")
	if err != nil {
		return 0, err
	}
	return v.GetInt64("size")
}

func searchValues(query string, opts *SearchOptions) (url.Values, error) {
	if opts == nil {
		opts = &SearchOptions{PageSize: 10}
	}
	if opts.PageSize == 0 {
		return nil, usageErrorf("page size 0 is reserved by the server for counting; use Count")
	}
	values := url.Values{
		"query":    {query},
		"pageNum":  {strconv.Itoa(opts.PageNum)},
		"pageSize": {strconv.Itoa(opts.PageSize)},
	}
	if len(opts.SortFields) > 0 {
		values.Set("sortFields", strings.Join(opts.SortFields, ","))
	}
	if opts.JSONFilter != "" {
		values.Set("filter", opts.JSONFilter)
	}
	return values, nil
}
