// Package resilience wraps calls to unreliable external collaborators with
// retry-with-exponential-backoff and per-operation circuit breaking. Every
// outbound call in the pipeline goes through a Guard built from this package.
package resilience
