package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/internal/http"
	"github.com/fivetwenty-io/snow/pkg/snow"
)

// TableClient implements snow.TableClient for rows decoded as T.
type TableClient[T any] struct {
	httpClient *http.Client
	tableName  string
	defaults   snow.PaginationOptions
}

// NewTableClient creates a client for one table. defaults apply to GetAll
// calls made without options.
func NewTableClient[T any](httpClient *http.Client, tableName string, defaults *snow.PaginationOptions) *TableClient[T] {
	options := snow.DefaultPaginationOptions()
	if defaults != nil {
		options = defaults
	}

	return &TableClient[T]{
		httpClient: httpClient,
		tableName:  tableName,
		defaults:   *options,
	}
}

// TableName implements snow.TableClient.TableName.
func (c *TableClient[T]) TableName() string {
	return c.tableName
}

func (c *TableClient[T]) tablePath() string {
	return constants.TablePath + "/" + c.tableName
}

func (c *TableClient[T]) recordPath(sysID string) string {
	return c.tablePath() + "/" + sysID
}

// GetPage implements snow.TableClient.GetPage.
func (c *TableClient[T]) GetPage(ctx context.Context, request snow.PageRequest) (*snow.Page[T], error) {
	if c.tableName == "" {
		return nil, snow.ErrTableNameRequired
	}

	err := request.Validate()
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.GetRaw(ctx, c.tablePath(), request.Encode())
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", c.tableName, err)
	}

	envelope, err := snow.NormalizeList[T](resp.Body, resp.Headers)
	if err != nil {
		return nil, fmt.Errorf("parsing %s records: %w", c.tableName, err)
	}

	return envelope.Page(), nil
}

// GetAll implements snow.TableClient.GetAll.
func (c *TableClient[T]) GetAll(ctx context.Context, query snow.QueryRequest, opts *snow.PaginationOptions) (*snow.AggregatedResult[T], error) {
	if opts == nil {
		defaults := c.defaults
		opts = &defaults
	}

	return snow.FetchAll[T](ctx, c, query, opts)
}

// Stream fetches the rows matching query page by page. Read the channel
// until it closes; a cancelled ctx ends it with an ErrCanceled result.
func (c *TableClient[T]) Stream(ctx context.Context, query snow.QueryRequest, opts *snow.PaginationOptions) <-chan snow.PageResult[T] {
	if opts == nil {
		defaults := c.defaults
		opts = &defaults
	}

	return snow.StreamPages[T](ctx, c, query, opts)
}

// Iterate returns an iterator over the rows matching query.
func (c *TableClient[T]) Iterate(ctx context.Context, query snow.QueryRequest, opts *snow.PaginationOptions) *snow.PaginationIterator[T] {
	if opts == nil {
		defaults := c.defaults
		opts = &defaults
	}

	return snow.NewPaginationIterator[T](ctx, c, query, opts)
}

// Get implements snow.TableClient.Get.
func (c *TableClient[T]) Get(ctx context.Context, sysID string, fields []string) (*T, error) {
	if sysID == "" {
		return nil, snow.ErrSysIDRequired
	}

	resp, err := c.httpClient.GetRaw(ctx, c.recordPath(sysID), snow.EncodeFields(fields))
	if err != nil {
		return nil, fmt.Errorf("getting %s record: %w", c.tableName, err)
	}

	return decodeSingle[T](resp.Body, c.tableName)
}

// Create implements snow.TableClient.Create.
func (c *TableClient[T]) Create(ctx context.Context, item *T) (*T, error) {
	body, err := compactBody(item)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(ctx, c.tablePath(), body)
	if err != nil {
		return nil, fmt.Errorf("creating %s record: %w", c.tableName, err)
	}

	return decodeSingle[T](resp.Body, c.tableName)
}

// Update implements snow.TableClient.Update. An empty sysID is taken from item.
func (c *TableClient[T]) Update(ctx context.Context, sysID string, item *T) (*T, error) {
	sysID, body, err := prepareWrite(sysID, item)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Put(ctx, c.recordPath(sysID), body)
	if err != nil {
		return nil, fmt.Errorf("updating %s record: %w", c.tableName, err)
	}

	return decodeSingle[T](resp.Body, c.tableName)
}

// Patch implements snow.TableClient.Patch. An empty sysID is taken from item.
func (c *TableClient[T]) Patch(ctx context.Context, sysID string, item *T) (*T, error) {
	sysID, body, err := prepareWrite(sysID, item)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Patch(ctx, c.recordPath(sysID), body)
	if err != nil {
		return nil, fmt.Errorf("patching %s record: %w", c.tableName, err)
	}

	return decodeSingle[T](resp.Body, c.tableName)
}

// Delete implements snow.TableClient.Delete.
func (c *TableClient[T]) Delete(ctx context.Context, sysID string) error {
	if sysID == "" {
		return snow.ErrSysIDRequired
	}

	_, err := c.httpClient.Delete(ctx, c.recordPath(sysID))
	if err != nil {
		return fmt.Errorf("deleting %s record: %w", c.tableName, err)
	}

	return nil
}

func decodeSingle[T any](body []byte, tableName string) (*T, error) {
	envelope, err := snow.NormalizeSingle[T](body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s record: %w", tableName, err)
	}

	item, _ := envelope.Single()

	return &item, nil
}

func prepareWrite[T any](sysID string, item *T) (string, []byte, error) {
	if sysID == "" {
		sysID = snow.SysIDOf(item)
	}

	if sysID == "" {
		return "", nil, snow.ErrSysIDRequired
	}

	body, err := compactBody(item)
	if err != nil {
		return "", nil, err
	}

	return sysID, body, nil
}

// compactBody serializes item without its null fields.
func compactBody[T any](item *T) ([]byte, error) {
	if item == nil {
		return nil, snow.ErrBatchItemRequired
	}

	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	var fields map[string]interface{}

	err = json.Unmarshal(data, &fields)
	if err != nil {
		return data, nil //nolint:nilerr // non-object bodies are sent unchanged
	}

	for key, value := range fields {
		if value == nil {
			delete(fields, key)
		}
	}

	compacted, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	return compacted, nil
}
