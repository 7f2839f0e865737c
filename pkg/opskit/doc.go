// Package opskit provides the building blocks for clients of remote
// task services: a long-running-operation poller and a paginated
// iterator, plus the error taxonomy, token persistence, and transport
// interceptors around them.
//
// # Overview
//
// The opskit package defines the abstract remote collaborators
// (OperationSource, OperationCanceler, ListClient, PageSource) and the
// two state machines that drive them: Poller, which starts an operation
// once and polls it until a terminal status, and PageIterator, which
// walks a server-paginated collection as one lazy sequence. A concrete
// REST binding of these collaborators is provided by the opsclient
// package; most consumers construct a client there and hand its
// endpoints to the primitives here.
//
// Driving an operation
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/opskit/pkg/opsclient"
//	  "github.com/fivetwenty-io/opskit/pkg/opskit"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := opsclient.New(&opskit.Config{Endpoint: "https://ops.example.com"})
//	  if err != nil { log.Fatal(err) }
//
//	  op, err := cli.Poller().Start(ctx, &opskit.OperationRequest{Kind: "export"})
//	  if err != nil { log.Fatal(err) }
//
//	  op, err = cli.Poller().Wait(ctx, op, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = op.Result
//	}
//
// A handle can cross process boundaries: Operation.ResumeToken captures
// it as a versioned opaque string, Poller.Resume reconstructs it without
// re-issuing the start call, and Store implementations (in-memory or
// NATS KV) persist tokens between runs.
//
// # Pagination
//
// PageIterator offers item-granularity iteration with transparent page
// fetches, or a page-granularity view via Pages and NextPage. A single
// iterator commits to one granularity at first use. Continuation tokens
// embed a fingerprint of the collection, so a token from a different
// query is rejected with ErrInvalidToken rather than silently walking
// the wrong collection.
//
//	it := opskit.NewPageIterator(ctx, opskit.NewJSONPageSource[Task](cli, "/v1/tasks", 50))
//	for it.HasNext() {
//	  task, err := it.Next()
//	  if err != nil { break }
//	  _ = task
//	}
//
// or fetch all results at once:
//
//	all, err := opskit.FetchAllPages(ctx, source, opskit.DefaultPaginationOptions())
//	if err != nil { /* handle error */ }
//	_ = all
//
// # Errors
//
// The package keeps two failure planes apart. An operation that ends in
// StatusFailed is not a Go error: the handle is terminal and the detail
// sits in Operation.Failure. Errors are reserved for failures to observe
// progress: StartError, PollError, FetchError wrap the transport cause,
// ProtocolError flags a status the state machine refuses to guess about,
// and sentinels (ErrWaitTimeout, ErrCancelUnsupported, ErrInvalidToken,
// ErrNoMoreItems) cover the control-flow cases. Neither the poller nor
// the iterator retries internally; retry policy belongs to the transport
// wrapped around the remote-call boundary.
package opskit
