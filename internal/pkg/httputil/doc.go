// Package httputil holds the JSON request/response helpers shared by the API
// handlers, keeping status codes and error envelopes uniform across
// endpoints.
package httputil
