// Package vercel integrates Vercel webhooks and the Vercel REST API into
// background job runs.
//
// The integration is a library, not a service. It provides typed webhook
// events with JSON Schema validation, one trigger specification per event
// type, a webhook event source that registers Vercel webhooks and verifies
// their deliveries, and retryable tasks for managing webhooks and deployment
// checks.
//
// Key features:
//   - Eleven Vercel event types with schemas, examples and display properties
//   - All-errors payload validation
//   - HMAC-SHA1 verification of every delivery
//   - Exponential backoff retries with a per-run task output cache
//   - Dead letter queue with replay
//   - Memory and Redis stores
//
// Quick start:
//
//	v, err := vercel.New("my-vercel", vercel.WithAPIKey(os.Getenv("VERCEL_API_KEY")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	runner, _ := v.CloneForRun(run.New(""), "vercel-conn", nil)
//	hooks, err := runner.ListWebhooks(ctx, "list-hooks", client.ListWebhooksParams{})
package vercel
