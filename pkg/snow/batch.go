package snow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
	"golang.org/x/sync/errgroup"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedOperationType = errors.New("unsupported operation type")
	ErrBatchItemRequired        = errors.New("item is required")
	ErrTransactionFailed        = errors.New("transaction failed")
)

// BatchOperationType names a record operation.
type BatchOperationType string

const (
	BatchCreate BatchOperationType = "create"
	BatchUpdate BatchOperationType = "update"
	BatchPatch  BatchOperationType = "patch"
	BatchDelete BatchOperationType = "delete"
	BatchGet    BatchOperationType = "get"
)

// BatchOperation represents a single operation in a batch.
type BatchOperation[T any] struct {
	ID       string
	Type     BatchOperationType
	SysID    string
	Item     *T
	Callback func(result *BatchResult[T])
}

// BatchResult represents the result of a batch operation.
type BatchResult[T any] struct {
	ID       string
	Success  bool
	Data     *T
	Error    error
	Duration time.Duration
}

// BatchExecutor runs independent record operations against one table with
// bounded concurrency.
type BatchExecutor[T any] struct {
	client      TableClient[T]
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor[T any](client TableClient[T], concurrency int) *BatchExecutor[T] {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrencyLimit
	}

	return &BatchExecutor[T]{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor[T]) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations. Results are in operation order; a
// failed operation does not stop the others.
func (b *BatchExecutor[T]) Execute(ctx context.Context, operations []BatchOperation[T]) []BatchResult[T] {
	results := make([]BatchResult[T], len(operations))

	group := new(errgroup.Group)
	group.SetLimit(b.concurrency)

	for index, operation := range operations {
		group.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}

			return nil
		})
	}

	_ = group.Wait()

	return results
}

func (b *BatchExecutor[T]) executeOperation(ctx context.Context, operation BatchOperation[T]) *BatchResult[T] {
	result := &BatchResult[T]{ID: operation.ID}

	var (
		data *T
		err  error
	)

	switch operation.Type {
	case BatchCreate:
		if operation.Item == nil {
			err = fmt.Errorf("%w for %s", ErrBatchItemRequired, operation.Type)

			break
		}

		data, err = b.client.Create(ctx, operation.Item)
	case BatchUpdate:
		if operation.Item == nil {
			err = fmt.Errorf("%w for %s", ErrBatchItemRequired, operation.Type)

			break
		}

		data, err = b.client.Update(ctx, operation.SysID, operation.Item)
	case BatchPatch:
		if operation.Item == nil {
			err = fmt.Errorf("%w for %s", ErrBatchItemRequired, operation.Type)

			break
		}

		data, err = b.client.Patch(ctx, operation.SysID, operation.Item)
	case BatchDelete:
		err = b.client.Delete(ctx, operation.SysID)
	case BatchGet:
		data, err = b.client.Get(ctx, operation.SysID, nil)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)
	}

	result.Data = data
	result.Error = err
	result.Success = err == nil

	return result
}

// BatchBuilder helps build batch operations.
type BatchBuilder[T any] struct {
	operations []BatchOperation[T]
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder[T any]() *BatchBuilder[T] {
	return &BatchBuilder[T]{
		operations: make([]BatchOperation[T], 0),
	}
}

// AddCreate adds a create operation.
func (b *BatchBuilder[T]) AddCreate(id string, item *T) *BatchBuilder[T] {
	return b.AddOperation(BatchOperation[T]{ID: id, Type: BatchCreate, Item: item})
}

// AddUpdate adds a full update operation.
func (b *BatchBuilder[T]) AddUpdate(id, sysID string, item *T) *BatchBuilder[T] {
	return b.AddOperation(BatchOperation[T]{ID: id, Type: BatchUpdate, SysID: sysID, Item: item})
}

// AddPatch adds a partial update operation.
func (b *BatchBuilder[T]) AddPatch(id, sysID string, item *T) *BatchBuilder[T] {
	return b.AddOperation(BatchOperation[T]{ID: id, Type: BatchPatch, SysID: sysID, Item: item})
}

// AddDelete adds a delete operation.
func (b *BatchBuilder[T]) AddDelete(id, sysID string) *BatchBuilder[T] {
	return b.AddOperation(BatchOperation[T]{ID: id, Type: BatchDelete, SysID: sysID})
}

// AddGet adds a get operation.
func (b *BatchBuilder[T]) AddGet(id, sysID string) *BatchBuilder[T] {
	return b.AddOperation(BatchOperation[T]{ID: id, Type: BatchGet, SysID: sysID})
}

// AddOperation adds a custom operation.
func (b *BatchBuilder[T]) AddOperation(operation BatchOperation[T]) *BatchBuilder[T] {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder[T]) Build() []BatchOperation[T] {
	return b.operations
}

// BatchTransaction runs a batch and, when any operation fails, deletes the
// rows the batch created. Updates and deletes are not reverted.
type BatchTransaction[T any] struct {
	operations []BatchOperation[T]
	executor   *BatchExecutor[T]
	rollback   bool
}

// NewBatchTransaction creates a new batch transaction.
func NewBatchTransaction[T any](executor *BatchExecutor[T]) *BatchTransaction[T] {
	return &BatchTransaction[T]{
		executor:   executor,
		operations: make([]BatchOperation[T], 0),
		rollback:   true,
	}
}

// Add adds an operation to the transaction.
func (t *BatchTransaction[T]) Add(operation BatchOperation[T]) *BatchTransaction[T] {
	t.operations = append(t.operations, operation)

	return t
}

// SetRollback sets whether to rollback on failure.
func (t *BatchTransaction[T]) SetRollback(rollback bool) *BatchTransaction[T] {
	t.rollback = rollback

	return t
}

// Execute executes the transaction.
func (t *BatchTransaction[T]) Execute(ctx context.Context) ([]BatchResult[T], error) {
	results := t.executor.Execute(ctx, t.operations)

	var failedOps []string

	for _, result := range results {
		if !result.Success {
			failedOps = append(failedOps, result.ID)
		}
	}

	if len(failedOps) == 0 {
		return results, nil
	}

	if t.rollback {
		t.performRollback(ctx, results)
	}

	return results, fmt.Errorf("%w, %d operations failed: %v", ErrTransactionFailed, len(failedOps), failedOps)
}

func (t *BatchTransaction[T]) performRollback(ctx context.Context, results []BatchResult[T]) {
	builder := NewBatchBuilder[T]()

	for i, result := range results {
		if !result.Success || t.operations[i].Type != BatchCreate || result.Data == nil {
			continue
		}

		if sysID := SysIDOf(result.Data); sysID != "" {
			builder.AddDelete("rollback_"+result.ID, sysID)
		}
	}

	if rollbackOps := builder.Build(); len(rollbackOps) > 0 {
		_ = t.executor.Execute(ctx, rollbackOps)
	}
}

// SysIDOf returns the sys_id of a Record or of a type exposing GetSysID.
func SysIDOf(item interface{}) string {
	switch value := item.(type) {
	case Record:
		return value.SysID()
	case *Record:
		if value == nil {
			return ""
		}

		return value.SysID()
	case interface{ GetSysID() string }:
		return value.GetSysID()
	default:
		return ""
	}
}
