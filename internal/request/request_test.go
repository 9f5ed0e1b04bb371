package request

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/0x6d61/sqlsiphon/internal/technique"
	"github.com/0x6d61/sqlsiphon/internal/technique/boolean"
	"github.com/0x6d61/sqlsiphon/internal/technique/timebased"
	"github.com/0x6d61/sqlsiphon/internal/transport"
)

func newClient(t *testing.T) transport.Client {
	t.Helper()
	c, err := transport.NewClient(transport.ClientOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func point(rawURL string, param technique.Parameter) *technique.Point {
	return &technique.Point{
		Target:    technique.Target{URL: rawURL, Method: http.MethodGet},
		Parameter: param,
	}
}

func TestBuildPlaces(t *testing.T) {
	target := technique.Target{
		URL:     "http://x/item?id=1&page=2",
		Method:  http.MethodPost,
		Body:    "user=bob",
		Headers: map[string]string{"X-Id": "1"},
		Cookies: map[string]string{"sid": "1"},
	}
	tests := []struct {
		place technique.Place
		name  string
		check func(*testing.T, *requestView)
	}{
		{technique.PlaceQuery, "id", func(t *testing.T, v *requestView) {
			if v.query.Get("id") != "1 AND 1=1" || v.query.Get("page") != "2" {
				t.Errorf("query = %v", v.query)
			}
		}},
		{technique.PlaceBody, "user", func(t *testing.T, v *requestView) {
			if v.body.Get("user") != "bob' AND 1=1" {
				t.Errorf("body = %v", v.body)
			}
			if v.contentType != "application/x-www-form-urlencoded" {
				t.Errorf("content type = %q", v.contentType)
			}
		}},
		{technique.PlaceHeader, "X-Id", func(t *testing.T, v *requestView) {
			if v.headers["X-Id"] != "1 AND 1=1" {
				t.Errorf("headers = %v", v.headers)
			}
		}},
		{technique.PlaceCookie, "sid", func(t *testing.T, v *requestView) {
			got, _ := url.QueryUnescape(v.cookies["sid"])
			if got != "1 AND 1=1" {
				t.Errorf("cookie = %q", v.cookies["sid"])
			}
		}},
	}
	for _, tt := range tests {
		value := "1 AND 1=1"
		if tt.place == technique.PlaceBody {
			value = "bob' AND 1=1"
		}
		r := New(nil, &technique.Point{Target: target, Parameter: technique.Parameter{Name: tt.name, Place: tt.place}})
		tt.check(t, view(t, r.Build(value)))
	}
	if target.Headers["X-Id"] != "1" || target.Cookies["sid"] != "1" {
		t.Error("Build must not modify the target maps")
	}
}

type requestView struct {
	query       url.Values
	body        url.Values
	headers     map[string]string
	cookies     map[string]string
	contentType string
}

func view(t *testing.T, req *transport.Request) *requestView {
	t.Helper()
	u, err := url.Parse(req.URL)
	if err != nil {
		t.Fatalf("bad URL %q: %v", req.URL, err)
	}
	body, _ := url.ParseQuery(req.Body)
	return &requestView{query: u.Query(), body: body, headers: req.Headers, cookies: req.Cookies, contentType: req.ContentType}
}

func TestQueryPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "id=%s", r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	r := New(newClient(t), point(srv.URL+"/?id=1", technique.Parameter{Name: "id", Value: "1"}))
	page, err := r.QueryPage(context.Background(), "1 UNION ALL SELECT 2", Options{})
	if err != nil {
		t.Fatalf("QueryPage: %v", err)
	}
	if page.String() != "id=1 UNION ALL SELECT 2" || page.Payload != "1 UNION ALL SELECT 2" {
		t.Errorf("page = %q", page.String())
	}

	if _, err := r.QueryPage(context.Background(), "missing", Options{Raise404: true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	page, err = r.QueryPage(context.Background(), "missing", Options{})
	if err != nil || page.StatusCode != http.StatusNotFound {
		t.Errorf("without Raise404: page=%v err=%v", page, err)
	}
	if r.Requests() != 3 {
		t.Errorf("Requests = %d, want 3", r.Requests())
	}
}

func TestEvaluateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "1" || strings.HasSuffix(id, "AND 1=1") {
			fmt.Fprint(w, "<h1>Widget</h1>\n<p>in stock</p>")
			return
		}
		fmt.Fprint(w, "<h1>Nothing here</h1>")
	}))
	defer srv.Close()

	r := New(newClient(t), point(srv.URL+"/?id=1", technique.Parameter{Name: "id", Value: "1"}))
	ok, err := r.Evaluate(context.Background(), "1 AND 1=1", false)
	if err != nil || !ok {
		t.Fatalf("true probe: %v, %v", ok, err)
	}
	ok, err = r.Evaluate(context.Background(), "1 AND 1=2", false)
	if err != nil || ok {
		t.Fatalf("false probe: %v, %v", ok, err)
	}
	// One baseline request plus two probes.
	if r.Requests() != 3 {
		t.Errorf("Requests = %d, want 3", r.Requests())
	}
}

func TestEvaluateMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Query().Get("id"), "1=1") {
			fmt.Fprint(w, "Welcome")
			return
		}
		fmt.Fprint(w, "Go away")
	}))
	defer srv.Close()

	r := New(newClient(t), point(srv.URL+"/?id=1", technique.Parameter{Name: "id", Value: "1"}),
		WithComparator(boolean.New(boolean.WithMarker("Welcome"))))
	ok, err := r.Evaluate(context.Background(), "1 AND 1=1", false)
	if err != nil || !ok {
		t.Fatalf("true probe: %v, %v", ok, err)
	}
	if r.Requests() != 1 {
		t.Errorf("a marker comparator needs no baseline request, got %d requests", r.Requests())
	}
}

func TestEvaluateTiming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("id"), "SLEEP") {
			time.Sleep(300 * time.Millisecond)
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	r := New(newClient(t), point(srv.URL+"/?id=1", technique.Parameter{Name: "id", Value: "1"}),
		WithTiming(timebased.NewWithTolerance(300*time.Millisecond, 0.7)))
	ok, err := r.Evaluate(context.Background(), "1 AND SLEEP(1)", true)
	if err != nil || !ok {
		t.Fatalf("delayed probe: %v, %v", ok, err)
	}
	ok, err = r.Evaluate(context.Background(), "1 AND 1=2", true)
	if err != nil || ok {
		t.Fatalf("fast probe: %v, %v", ok, err)
	}
	if r.Requests() != int64(timebased.BaselineSamples)+2 {
		t.Errorf("Requests = %d", r.Requests())
	}
}

func TestEvaluateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	r := New(newClient(t), point(srv.URL+"/?id=1", technique.Parameter{Name: "id", Value: "1"}))
	if _, err := r.Evaluate(context.Background(), "1", false); err == nil {
		t.Error("expected the baseline request to fail")
	}
}
