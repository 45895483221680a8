package snow

import (
	"net/url"
	"strconv"
	"strings"
)

// Table API query parameter names.
const (
	ParamOffset = "sysparm_offset"
	ParamLimit  = "sysparm_limit"
	ParamQuery  = "sysparm_query"
	ParamFields = "sysparm_fields"
)

// Field and clause names the query builder relies on.
const (
	FieldSysID        = "sys_id"
	FieldSysCreatedOn = "sys_created_on"

	// OrderByDirective matches ORDERBY and ORDERBYDESC clauses.
	OrderByDirective = "ORDERBY"
	ClauseSeparator  = "^"
	DefaultOrdering  = OrderByDirective + FieldSysCreatedOn
)

// QueryRequest is a logical "all matching rows" request.
type QueryRequest struct {
	// Query is an encoded filter such as "active=true^priority=1".
	Query string
	// Fields limits the returned columns. Empty means all columns.
	Fields []string
	// Extra is appended verbatim to the query string. It must already be encoded.
	Extra string
}

// PageRequest selects one bounded slice of a query's rows.
type PageRequest struct {
	Offset int
	Limit  int
	Query  string
	Fields []string
	Extra  string
}

// Validate checks the offset and limit.
func (r PageRequest) Validate() error {
	if r.Offset < 0 {
		return ErrInvalidOffset
	}

	if r.Limit <= 0 {
		return ErrInvalidPageSize
	}

	return nil
}

// Encode returns the full query string for the page, without a leading "?".
func (r PageRequest) Encode() string {
	var builder strings.Builder

	builder.WriteString(ParamOffset)
	builder.WriteByte('=')
	builder.WriteString(strconv.Itoa(r.Offset))
	builder.WriteByte('&')
	builder.WriteString(ParamLimit)
	builder.WriteByte('=')
	builder.WriteString(strconv.Itoa(r.Limit))
	builder.WriteByte('&')
	builder.WriteString(BuildQuery(r.Query, r.Fields, r.Extra))

	return builder.String()
}

// EnsureOrdering appends the default ordering clause unless the filter
// already orders its results. An empty filter becomes the ordering clause.
func EnsureOrdering(filter string) string {
	if strings.Contains(filter, OrderByDirective) {
		return filter
	}

	if filter == "" {
		return DefaultOrdering
	}

	return filter + ClauseSeparator + DefaultOrdering
}

// BuildQuery encodes a filter, field selection and extra fragment into a
// query string. The filter always carries an ordering clause.
func BuildQuery(filter string, fields []string, extra string) string {
	parts := make([]string, 0, 3)
	parts = append(parts, ParamQuery+"="+url.QueryEscape(EnsureOrdering(filter)))

	if encoded := EncodeFields(fields); encoded != "" {
		parts = append(parts, encoded)
	}

	if extra != "" {
		parts = append(parts, extra)
	}

	return strings.Join(parts, "&")
}

// EncodeFields returns the sysparm_fields parameter or "" when fields is empty.
func EncodeFields(fields []string) string {
	if len(fields) == 0 {
		return ""
	}

	return ParamFields + "=" + url.QueryEscape(strings.Join(fields, ","))
}

// ParseFields recovers the field selection from an encoded query string.
func ParseFields(rawQuery string) []string {
	for _, part := range strings.Split(strings.TrimPrefix(rawQuery, "?"), "&") {
		value, found := strings.CutPrefix(part, ParamFields+"=")
		if !found {
			continue
		}

		decoded, err := url.QueryUnescape(value)
		if err != nil || decoded == "" {
			return nil
		}

		return strings.Split(decoded, ",")
	}

	return nil
}
