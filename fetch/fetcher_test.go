package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(ClientConfig{BaseURL: server.URL + "/api", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestExecuteSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bookings" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "pending" {
			t.Errorf("Unexpected query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data":[{"id":"b1"}]}`))
	}))

	query := url.Values{}
	query.Set("status", "pending")
	body, err := c.Execute(context.Background(), Request{Method: "GET", Collection: "bookings", Query: query})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(body) != `{"data":[{"id":"b1"}]}` {
		t.Errorf("Unexpected body: %s", body)
	}
}

func TestExecuteNonSuccessStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"booking is already cancelled"}`))
	}))

	_, err := c.Execute(context.Background(), Get("bookings", "b1"))
	if err == nil {
		t.Fatal("Expected an error for 409")
	}
	te, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if te.Kind != NonSuccessStatus {
		t.Errorf("Expected NonSuccessStatus, got %s", te.Kind)
	}
	if te.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", te.StatusCode)
	}
	if te.Message != "booking is already cancelled" {
		t.Errorf("Server message should be preserved, got %q", te.Message)
	}
}

func TestExecuteMalformedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))

	_, err := c.Execute(context.Background(), Get("bookings", "b1"))
	if !IsKind(err, MalformedResponse) {
		t.Fatalf("Expected MalformedResponse, got %v", err)
	}
}

func TestExecuteNetworkUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing is listening anymore

	c, err := NewClient(ClientConfig{BaseURL: server.URL + "/api"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = c.Execute(context.Background(), Get("bookings", "b1"))
	if !IsKind(err, NetworkUnreachable) {
		t.Fatalf("Expected NetworkUnreachable, got %v", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Execute(ctx, Get("bookings", "b1"))
	if !IsKind(err, NetworkUnreachable) {
		t.Fatalf("Timeout should surface as NetworkUnreachable, got %v", err)
	}
}

func TestExecuteNoContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	body, err := c.Execute(context.Background(), Delete("bookings", "b1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if body != nil {
		t.Errorf("Expected empty body for 204, got %s", body)
	}
}

func TestExecuteListValidatesEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"b1"},{"id":"b2"}],"pagination":{"page":1,"perPage":20,"totalPages":1,"totalItems":2}}`))
	}))

	envelope, err := c.ExecuteList(context.Background(), Request{Method: "GET", Collection: "bookings"})
	if err != nil {
		t.Fatalf("ExecuteList failed: %v", err)
	}
	if envelope.Pagination == nil || envelope.Pagination.TotalItems != 2 {
		t.Errorf("Pagination should be parsed, got %+v", envelope.Pagination)
	}
}

func TestExecuteListRejectsMissingData(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))

	_, err := c.ExecuteList(context.Background(), Request{Method: "GET", Collection: "bookings"})
	if !IsKind(err, MalformedResponse) {
		t.Fatalf("Expected MalformedResponse, got %v", err)
	}
}

func TestExecuteListRejectsNonArrayData(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"b1"}}`))
	}))

	_, err := c.ExecuteList(context.Background(), Request{Method: "GET", Collection: "bookings"})
	if !IsKind(err, MalformedResponse) {
		t.Fatalf("Expected MalformedResponse, got %v", err)
	}
}

func TestBulkRequestPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))

	_, err := c.Execute(context.Background(), BulkPatch("bookings", []string{"a", "b"}, map[string]any{"status": "confirmed"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotPath != "/api/bookings/bulk" {
		t.Errorf("Expected bulk path, got %q", gotPath)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("Expected error for missing base URL")
	}
}
