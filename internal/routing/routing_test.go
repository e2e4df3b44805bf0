package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	a, err := ParseAllowlistYAML([]byte(DefaultAllowlist))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return c
}

func TestParseAllowlist_RejectsBadVersion(t *testing.T) {
	if _, err := ParseAllowlistYAML([]byte("version: 2\nentrypoints: {}\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassify(t *testing.T) {
	c := testClassifier(t)
	cases := []struct {
		path string
		want RouteClass
	}{
		{"/healthz", RouteClassOps},
		{"/api/suites/generate", RouteClassPublicAPI},
		{"/api/suites/0198a1b2/current", RouteClassPublicAPI},
		{"/api/applicability/0198a1b2", RouteClassPublicAPI},
		{"/api/undeclared", RouteClassPublicAPI},
		{"/internal/api/debug", RouteClassInternalAPI},
		{"/webhooks/regulator", RouteClassWebhook},
		{"/favicon.ico", RouteClassUnknown},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.path); got != tc.want {
			t.Fatalf("path=%s got=%s want=%s", tc.path, got, tc.want)
		}
	}
}

func TestPathPattern(t *testing.T) {
	p, ok := parsePathPattern("/api/suites/{entityID}/current")
	if !ok {
		t.Fatal("parse failed")
	}
	if !p.Match("/api/suites/abc/current") {
		t.Fatal("want match")
	}
	if p.Match("/api/suites/abc") || p.Match("/api/suites//current") {
		t.Fatal("unexpected match")
	}
	if _, ok := parsePathPattern("/plain/path"); ok {
		t.Fatal("plain path is not a pattern")
	}
}

func TestRouter_DispatchAndErrors(t *testing.T) {
	r := NewRouter(testClassifier(t))
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/suites/{entityID}/current",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/suites/e1/current", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/suites/e1/current", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("err=%v", err)
	}
	if envelope.Code != "not_found" || envelope.Meta.Path != "/api/nope" {
		t.Fatalf("envelope=%+v", envelope)
	}
}

func TestRouter_UnknownClassGetsHTMLError(t *testing.T) {
	r := NewRouter(testClassifier(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("content-type=%q", ct)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)
	req.Header.Set("Accept", "application/json")
	r.ServeHTTP(rec, req)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestRouter_RefusesUndeclaredRegistration(t *testing.T) {
	r := NewRouter(testClassifier(t))
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/boom",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	r.Handle(RouteClassPublicAPI, http.MethodDelete, "/api/suites/generate",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	err := r.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"GET /api/boom", "DELETE /api/suites/generate"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err=%v missing %q", err, want)
		}
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestRouter_ValidateCleanSurface(t *testing.T) {
	r := NewRouter(testClassifier(t))
	r.Handle(RouteClassOps, http.MethodGet, "/healthz",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	if err := r.Validate(); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := NewRouter(testClassifier(t))
	r.Handle(RouteClassPublicAPI, http.MethodPost, "/api/suites/generate",
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/suites/generate", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestDeclared(t *testing.T) {
	c := testClassifier(t)
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/healthz", true},
		{http.MethodPost, "/healthz", false},
		{http.MethodPost, "/api/entities", true},
		{http.MethodGet, "/api/suites/{entityID}/current", true},
		{http.MethodGet, "/api/suites/e1/current", true},
		{http.MethodDelete, "/api/suites/e1/current", false},
		{http.MethodGet, "/api/undeclared", false},
	}
	for _, tc := range cases {
		if got := c.Declared(tc.method, tc.path); got != tc.want {
			t.Fatalf("method=%s path=%s got=%v want=%v", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestTraceIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	if got := traceIDFromRequest(req); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("got=%q", got)
	}
	req.Header.Set("traceparent", "garbage")
	if got := traceIDFromRequest(req); got != "" {
		t.Fatalf("got=%q", got)
	}
}
