// Package snow provides types, interfaces, and helpers for working with the
// ServiceNow Table API.
//
// # Overview
//
// The snow package defines the row types (Record, TableRecord, Attachment,
// MetaDataResult), the client interfaces (TableClient, AttachmentsClient,
// MetaClient, LinksClient) and the query, envelope and paging engine they are
// built on. A concrete implementation is provided by the snowclient package,
// which wires configuration, transport and authentication.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/snow/pkg/snow"
//	  "github.com/fivetwenty-io/snow/pkg/snowclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := snowclient.New(ctx, &snow.Config{
//	    Instance: "dev12345",
//	    Username: "admin",
//	    Password: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  incidents, err := cli.Table("incident").GetAll(ctx, snow.QueryRequest{
//	    Query:  "active=true",
//	    Fields: []string{"number", "short_description"},
//	  }, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = incidents
//	}
//
// # Queries and pagination
//
// BuildQuery turns a filter, a field selection and an extra fragment into a
// sysparm query string, always adding ORDERBYsys_created_on when the filter
// has no ordering so that successive pages see a stable order. FetchAll drives
// a PageFetcher page by page until a short page is returned; StreamPages and
// PaginationIterator expose the same walk incrementally. The paging scheme is
// pluggable through PagingStrategy; OffsetStrategy is the default.
//
// # Errors
//
// Failures are reported as *TransportError (status or network failure),
// *DecodeError (unexpected body, raw text included) or *CountMismatchError
// (strict aggregations only). Cancellation yields an error matching
// ErrCanceled and the context error. IsNotFound, IsTimeout and IsRetriable
// classify errors for callers.
//
// # Interceptors, caching and batches
//
// The package also carries request/response interceptors (logging, headers,
// rate limiting, metrics), a pluggable Cache with memory and NATS key/value
// backends, and a BatchExecutor for running independent record operations
// concurrently.
package snow
