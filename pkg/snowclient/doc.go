// Package snowclient provides the entry point for constructing a Table API
// client that implements the snow.Client interface.
//
// It layers configuration, HTTP transport and authentication on top of the
// interfaces and types defined in the snow package. Most applications import
// snowclient to build a client, then use the returned client to reach the
// table, attachment, metadata and link operations.
//
// Quick start
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
//
//	  // Basic authentication against https://dev12345.service-now.com.
//	  cli, err := snowclient.NewWithBasicAuth(ctx, "dev12345", "admin", "secret")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or OAuth2 with client credentials:
//	  cli, err = snowclient.New(ctx, &snow.Config{
//	    Instance:     "dev12345",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	  })
//
//	  // Or from SNOW_* environment variables:
//	  cli, err = snowclient.NewFromEnv(ctx)
//
//	  // Untyped rows:
//	  rows, err := cli.Table("incident").GetAll(ctx, snow.QueryRequest{Query: "active=true"}, nil)
//	  _ = rows
//	}
//
// Typed rows
//
// Types implementing snow.Table get a typed table client:
//
//	type Incident struct {
//	  snow.TableRecord
//	  Number string `json:"number"`
//	}
//
//	func (Incident) TableName() string { return "incident" }
//
//	incidents := snowclient.Table[Incident](cli)
//	it := incidents.Iterate(ctx, snow.QueryRequest{Query: "priority=1"}, nil)
//	for it.HasNext() {
//	  incident, err := it.Next()
//	  ...
//	}
//
// Environment
//
// NewFromEnv reads SNOW_INSTANCE, SNOW_BASE_URL, SNOW_USERNAME,
// SNOW_PASSWORD, SNOW_CLIENT_ID, SNOW_CLIENT_SECRET, SNOW_ACCESS_TOKEN,
// SNOW_REFRESH_TOKEN, SNOW_TOKEN_URL, SNOW_TIMEOUT, SNOW_RETRY_MAX,
// SNOW_RATE_LIMIT, SNOW_PAGE_SIZE, SNOW_STRICT_COUNT, SNOW_DEBUG and
// SNOW_LOG_LEVEL.
package snowclient
