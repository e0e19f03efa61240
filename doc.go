// Package genclient provides an admission-controlled client for
// long-running remote generation jobs. It bounds the number of jobs in
// flight, orders pending jobs by priority, retries transient submit
// failures with backoff, polls task progress adaptively, and stops
// admitting work once a daily cost budget is exhausted.
//
// Genclient is a library, not a service. Wire it to a remote.Service
// implementation and submit jobs as ordinary function calls:
//
//	c, err := genclient.New(veoService,
//	    genclient.WithDailyBudget(25.0),
//	    genclient.WithMaxConcurrent(2),
//	)
//	if err != nil { ... }
//	if err := c.Start(ctx); err != nil { ... }
//
//	h, err := c.SubmitJob(ctx, job.Params{Prompt: "sunrise timelapse"},
//	    genclient.WithPriority(job.PriorityHigh),
//	)
//
// # Architecture
//
// Each concern lives in its own subpackage: budget holds the spend
// ledger and admission gate, queue the priority buckets, worker the
// retrying submitter and the concurrency dispatcher, poll the adaptive
// status poller, and hook the lifecycle extension registry.
//
// All request IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package genclient
