// Package httputil provides shared HTTP plumbing for registry clients.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff. Only errors wrapped
// with [RetryableError] trigger another attempt; everything else is returned
// immediately:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Get(url)
//	    if err != nil {
//	        return httputil.Retryable(err) // network errors are transient
//	    }
//	    defer resp.Body.Close()
//	    return checkStatus(resp)
//	})
//
// The defaults (3 attempts, 1 second initial delay, doubling each retry) suit
// registry traffic; [Retry] takes explicit attempts and delay when they do
// not.
//
// Response caching is a separate concern and lives in the cache package.
package httputil
