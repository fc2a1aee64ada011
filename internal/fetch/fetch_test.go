package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestFetchExtractsSequenceFromHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		part := r.URL.Query().Get("part")
		w.Header().Set(FragmentHeader, part)
		w.Write([]byte("strip-" + part))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	frag, err := c.Fetch(context.Background(), 1, 17)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if frag.Sequence != 17 {
		t.Errorf("Sequence = %d, want 17", frag.Sequence)
	}
	if string(frag.Body) != "strip-17" {
		t.Errorf("Body = %q, want %q", frag.Body, "strip-17")
	}
}

func TestFetchMissingHeaderIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no header here"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Fetch(context.Background(), 1, 0); err == nil {
		t.Fatal("expected an error when the fragment header is absent")
	}
}

func TestFetchNonOKStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Fetch(context.Background(), 1, 0); err == nil {
		t.Fatal("expected an error on a 500 response")
	}
}

func TestFetchQueryParameters(t *testing.T) {
	var gotImg, gotPart string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotImg = r.URL.Query().Get("img")
		gotPart = r.URL.Query().Get("part")
		w.Header().Set(FragmentHeader, "3")
		w.Write(nil)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Fetch(context.Background(), 2, 3); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotImg != "2" || gotPart != strconv.Itoa(3) {
		t.Errorf("query = img=%s&part=%s, want img=2&part=3", gotImg, gotPart)
	}
}

func ExampleClient_Fetch() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(FragmentHeader, "0")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	frag, err := c.Fetch(context.Background(), 1, 0)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(frag.Sequence)
	// Output: 0
}
