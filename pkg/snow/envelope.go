package snow

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const (
	// ResultKey wraps every Table API response body.
	ResultKey = "result"
	// HeaderTotalCount carries the number of rows matching a list query.
	HeaderTotalCount = "X-Total-Count"
)

// EnvelopeKind tells which variant an Envelope holds.
type EnvelopeKind int

const (
	EnvelopeSingle EnvelopeKind = iota + 1
	EnvelopeList
)

// String returns the kind name.
func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeSingle:
		return "single"
	case EnvelopeList:
		return "list"
	default:
		return "unknown"
	}
}

// Envelope is a decoded response body: either one item or a list of items
// with an optional total count.
type Envelope[T any] struct {
	kind  EnvelopeKind
	item  T
	items []T
	total *int
}

// SingleEnvelope wraps one item.
func SingleEnvelope[T any](item T) Envelope[T] {
	return Envelope[T]{kind: EnvelopeSingle, item: item}
}

// ListEnvelope wraps a list of items and the optional total count.
func ListEnvelope[T any](items []T, total *int) Envelope[T] {
	return Envelope[T]{kind: EnvelopeList, items: items, total: total}
}

// Kind returns the envelope variant.
func (e Envelope[T]) Kind() EnvelopeKind {
	return e.kind
}

// Single returns the item of a single envelope.
func (e Envelope[T]) Single() (T, bool) {
	return e.item, e.kind == EnvelopeSingle
}

// List returns the items of a list envelope.
func (e Envelope[T]) List() ([]T, bool) {
	return e.items, e.kind == EnvelopeList
}

// TotalCount returns the total reported for a list envelope, or nil when unknown.
func (e Envelope[T]) TotalCount() *int {
	return e.total
}

// Page converts a list envelope into a page. A single envelope yields a
// one-item page with an unknown total.
func (e Envelope[T]) Page() *Page[T] {
	if e.kind == EnvelopeSingle {
		return &Page[T]{Items: []T{e.item}}
	}

	items := e.items
	if items == nil {
		items = []T{}
	}

	return &Page[T]{Items: items, TotalCount: e.total}
}

// NormalizeSingle decodes a {"result": {...}} body.
func NormalizeSingle[T any](body []byte) (Envelope[T], error) {
	var wrapper struct {
		Result *T `json:"result"`
	}

	err := json.Unmarshal(body, &wrapper)
	if err != nil {
		return Envelope[T]{}, &DecodeError{Body: string(body), Err: err}
	}

	if wrapper.Result == nil {
		return Envelope[T]{}, &DecodeError{Body: string(body), Err: ErrNilResult}
	}

	return SingleEnvelope(*wrapper.Result), nil
}

// NormalizeList decodes a {"result": [...]} body and attaches the
// X-Total-Count header when it holds a non-negative integer.
func NormalizeList[T any](body []byte, headers http.Header) (Envelope[T], error) {
	var wrapper struct {
		Result *[]T `json:"result"`
	}

	err := json.Unmarshal(body, &wrapper)
	if err != nil {
		return Envelope[T]{}, &DecodeError{Body: string(body), Err: err}
	}

	if wrapper.Result == nil {
		return Envelope[T]{}, &DecodeError{Body: string(body), Err: ErrNilResult}
	}

	return ListEnvelope(*wrapper.Result, TotalCountFromHeaders(headers)), nil
}

// TotalCountFromHeaders parses X-Total-Count. Missing or non-numeric values yield nil.
func TotalCountFromHeaders(headers http.Header) *int {
	if headers == nil {
		return nil
	}

	raw := strings.TrimSpace(headers.Get(HeaderTotalCount))
	if raw == "" {
		return nil
	}

	total, err := strconv.Atoi(raw)
	if err != nil || total < 0 {
		return nil
	}

	return &total
}
