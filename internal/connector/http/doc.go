// Package http provides the REST client shared by the harvester's service
// collaborators (configuration store, record service, search index, week
// resolver, cover service and job store).
//
// Structure:
//
//	client.go     - HTTP client with rate limiting and retry
//	auth.go       - Authentication strategies (none, basic, bearer)
//	paginator.go  - Cursor-mark pagination for search backends
package http
