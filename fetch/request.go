package fetch

import (
	"net/url"

	"github.com/bookline/resync/types"
)

// Request describes one resource API round trip.
type Request struct {
	Method     string
	Collection string

	// ID addresses a single resource. Empty for collection-level requests.
	ID string

	// Bulk targets the collection's bulk endpoint instead of a resource.
	Bulk bool

	// Query is the filter/sort/page query string for list requests.
	Query url.Values

	// Body is marshalled to JSON when non-nil.
	Body any
}

// List builds a GET request for a cached query key.
func List(key types.ResourceKey) Request {
	query := url.Values{}
	for _, name := range key.ParamNames() {
		if p, ok := key.Param(name); ok {
			query.Set(name, p.Value())
		}
	}
	return Request{Method: "GET", Collection: key.Collection(), Query: query}
}

// Get builds a GET request for a single resource.
func Get(collection, id string) Request {
	return Request{Method: "GET", Collection: collection, ID: id}
}

// Create builds a POST request.
func Create(collection string, body any) Request {
	return Request{Method: "POST", Collection: collection, Body: body}
}

// Update builds a PATCH request for a single resource.
func Update(collection, id string, body any) Request {
	return Request{Method: "PATCH", Collection: collection, ID: id, Body: body}
}

// Delete builds a DELETE request for a single resource.
func Delete(collection, id string) Request {
	return Request{Method: "DELETE", Collection: collection, ID: id}
}

// BulkPatch builds a PATCH request against the collection's bulk endpoint.
func BulkPatch(collection string, ids []string, fields map[string]any) Request {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["ids"] = ids
	return Request{Method: "PATCH", Collection: collection, Bulk: true, Body: body}
}
