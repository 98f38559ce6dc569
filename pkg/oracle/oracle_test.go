package oracle

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatic(t *testing.T) {
	p, err := Static{Price: 1000}.FetchPrice()
	if err != nil || p != 1000 {
		t.Errorf("FetchPrice = %d, %v; want 1000, nil", p, err)
	}
}

func TestManual(t *testing.T) {
	m := NewManual(1000)
	if p, _ := m.FetchPrice(); p != 1000 {
		t.Errorf("price = %d, want 1000", p)
	}
	m.SetPrice(900)
	if p, _ := m.FetchPrice(); p != 900 {
		t.Errorf("price = %d, want 900", p)
	}
}

func TestFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": 1.25}`))
	}))
	defer srv.Close()

	f := NewFeed(srv.URL, 1000)
	p, err := f.FetchPrice()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 1250 {
		t.Errorf("price = %d, want 1250", p)
	}
}

func TestFeedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewFeed(srv.URL, 1000).FetchPrice(); err == nil {
		t.Error("expected error on 500 response")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": -3}`))
	}))
	defer bad.Close()

	if _, err := NewFeed(bad.URL, 1000).FetchPrice(); err == nil {
		t.Error("expected error on non-positive price")
	}
}

func TestRandomWalkStaysPositive(t *testing.T) {
	r := NewRandom(1000, 7)
	for i := 0; i < 1000; i++ {
		p, err := r.FetchPrice()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p == 0 {
			t.Fatal("random walk hit zero")
		}
	}
}
