package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"availability-proxy/availability"
	"availability-proxy/ratelimit"
	"availability-proxy/ratelimit/application"
	"availability-proxy/ratelimit/infra"
)

// fakeFetcher devolve uma resposta programada e grava o que recebeu.
type fakeFetcher struct {
	doc availability.Document
	err error

	lastDate string
	lastRef  string
	lastQ    availability.RangeQuery
	calls    int
}

func (f *fakeFetcher) FetchDay(_ context.Context, date, ref string) (availability.Document, error) {
	f.calls++
	f.lastDate, f.lastRef = date, ref
	return f.doc, f.err
}

func (f *fakeFetcher) FetchRange(_ context.Context, q availability.RangeQuery) (availability.Document, error) {
	f.calls++
	f.lastQ = q
	return f.doc, f.err
}

func docWith(attrs ...availability.Attributes) availability.Document {
	var doc availability.Document
	for _, a := range attrs {
		doc.Data = append(doc.Data, availability.Resource{Attributes: a})
	}
	return doc
}

func newTestRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	opts.Logger = zerolog.Nop()
	return NewRouter(opts)
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Root(t *testing.T) {
	r := newTestRouter(Options{Fetcher: &fakeFetcher{}})

	w := get(r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Message   string            `json:"message"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "Peek Availability API" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if len(body.Endpoints) != 2 {
		t.Fatalf("expected the two availability endpoints listed, got %v", body.Endpoints)
	}
}

func TestRouter_Healthz(t *testing.T) {
	r := newTestRouter(Options{Fetcher: &fakeFetcher{}})

	w := get(r, "/healthz")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestDay_ReturnsShapedJSON(t *testing.T) {
	fetcher := &fakeFetcher{doc: docWith(
		availability.Attributes{
			Time: "7:20PM", Date: "2026-01-15", Spots: 4,
			AvailabilityMode: "normal",
			DatetimeRange:    "[2026-01-15 19:20, 2026-01-15 20:35)",
		},
		availability.Attributes{
			Time: "8:40PM", Date: "2026-01-15", Spots: 0,
			AvailabilityMode: "normal",
			DatetimeRange:    "[2026-01-15 20:40",
		},
	)}
	r := newTestRouter(Options{Fetcher: fetcher, CacheMaxAge: time.Minute})

	w := get(r, "/availability/2026-01-15")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Fatalf("expected the public cache header, got %q", got)
	}

	var body dayResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Date != "2026-01-15" || body.Count != 2 || len(body.Times) != 2 {
		t.Fatalf("unexpected response shape: %+v", body)
	}
	if body.Times[0].StartTime != "2026-01-15 19:20" {
		t.Fatalf("expected the shaped start_time, got %q", body.Times[0].StartTime)
	}

	// fim desconhecido precisa sair como null, não sumir nem virar ""
	if !strings.Contains(w.Body.String(), `"end_time":null`) {
		t.Fatalf("expected end_time null in the payload: %s", w.Body.String())
	}
}

func TestDay_RejectsMalformedDate(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newTestRouter(Options{Fetcher: fetcher})

	for _, date := range []string{"2026-1-15", "20260115", "not-a-date", "2026-13-40"} {
		w := get(r, "/availability/"+date)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("date %q: expected 400, got %d", date, w.Code)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Fatalf("date %q: expected no-store on errors, got %q", date, got)
		}
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no upstream call for invalid dates, got %d", fetcher.calls)
	}
}

func TestDay_TextViewForUserCaller(t *testing.T) {
	fetcher := &fakeFetcher{doc: docWith(
		availability.Attributes{Time: "7:20PM", Date: "2026-01-15", Spots: 4},
		availability.Attributes{Time: "8:40PM", Date: "2026-01-15", Spots: 0},
	)}
	r := newTestRouter(Options{Fetcher: fetcher, CacheMaxAge: time.Minute})

	w := get(r, "/availability/2026-01-15?caller_type=USER")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain for human callers, got %q", ct)
	}
	want := "For January 15, 2026:\n7:20 PM has 4 spots\n"
	if w.Body.String() != want {
		t.Fatalf("expected %q, got %q", want, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Fatalf("expected the text view cached too, got %q", got)
	}
}

func TestDay_CallerTypeIsCaseInsensitive(t *testing.T) {
	fetcher := &fakeFetcher{doc: docWith(availability.Attributes{Time: "7:20PM", Date: "2026-01-15", Spots: 1})}
	r := newTestRouter(Options{Fetcher: fetcher})

	w := get(r, "/availability/2026-01-15?caller_type=user")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text for caller_type=user, got %q", ct)
	}

	// API e valores desconhecidos continuam recebendo JSON
	w = get(r, "/availability/2026-01-15?caller_type=API")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected json for caller_type=API, got %q", ct)
	}
}

func TestDay_PassesBookingRefThrough(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newTestRouter(Options{Fetcher: fetcher})

	get(r, "/availability/2026-01-15?booking_refid=ref-42")
	if fetcher.lastDate != "2026-01-15" || fetcher.lastRef != "ref-42" {
		t.Fatalf("expected date and booking ref forwarded, got %q %q", fetcher.lastDate, fetcher.lastRef)
	}
}

func TestDay_UpstreamFailureIs500(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("peek responded 502 Bad Gateway")}
	r := newTestRouter(Options{Fetcher: fetcher, CacheMaxAge: time.Minute})

	w := get(r, "/availability/2026-01-15")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Failed to fetch availability data") {
		t.Fatalf("expected the generic error body, got %s", w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store on failures, got %q", got)
	}
}

func TestDay_GuardRejectionIs503(t *testing.T) {
	for _, err := range []error{availability.ErrThrottled, availability.ErrBusy} {
		fetcher := &fakeFetcher{err: err}
		r := newTestRouter(Options{Fetcher: fetcher})

		w := get(r, "/availability/2026-01-15")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%v: expected 503, got %d", err, w.Code)
		}
	}
}

func TestRange_ValidatesParams(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newTestRouter(Options{Fetcher: fetcher})

	cases := []struct {
		target string
		msg    string
	}{
		{"/availability-range", "start_date and end_date are required"},
		{"/availability-range?start_date=2026-01-15", "start_date and end_date are required"},
		{"/availability-range?start_date=2026-1-15&end_date=2026-01-20", "must be in YYYY-MM-DD format"},
		{"/availability-range?start_date=2026-01-20&end_date=2026-01-15", "start_date must not be after end_date"},
	}
	for _, tc := range cases {
		w := get(r, tc.target)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.target, w.Code)
		}
		if !strings.Contains(w.Body.String(), tc.msg) {
			t.Fatalf("%s: expected message %q, got %s", tc.target, tc.msg, w.Body.String())
		}
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no upstream call for invalid ranges, got %d", fetcher.calls)
	}
}

func TestRange_ReturnsShapedJSON(t *testing.T) {
	fetcher := &fakeFetcher{doc: docWith(
		availability.Attributes{Time: "7:20PM", Date: "2026-01-15", Spots: 4},
		availability.Attributes{Time: "10:00AM", Date: "2026-01-16", Spots: 2},
	)}
	r := newTestRouter(Options{Fetcher: fetcher})

	w := get(r, "/availability-range?start_date=2026-01-15&end_date=2026-01-16&booking_refid=ref-1&namespace=widget&pc_id=pc-9")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	q := fetcher.lastQ
	if q.StartDate != "2026-01-15" || q.EndDate != "2026-01-16" {
		t.Fatalf("expected the dates forwarded, got %+v", q)
	}
	if q.BookingRefID != "ref-1" || q.Namespace != "widget" || q.PCID != "pc-9" {
		t.Fatalf("expected the optional params forwarded, got %+v", q)
	}

	var body rangeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.StartDate != "2026-01-15" || body.EndDate != "2026-01-16" || body.Count != 2 {
		t.Fatalf("unexpected response shape: %+v", body)
	}
}

func TestRange_TextViewGroupsByDate(t *testing.T) {
	fetcher := &fakeFetcher{doc: docWith(
		availability.Attributes{Time: "7:20PM", Date: "2026-01-15", Spots: 4},
		availability.Attributes{Time: "10:00AM", Date: "2026-01-16", Spots: 2},
	)}
	r := newTestRouter(Options{Fetcher: fetcher})

	w := get(r, "/availability-range?start_date=2026-01-15&end_date=2026-01-16&caller_type=USER")
	want := "For January 15, 2026:\n7:20 PM has 4 spots\n\nFor January 16, 2026:\n10:00 AM has 2 spots\n"
	if w.Body.String() != want {
		t.Fatalf("expected %q, got %q", want, w.Body.String())
	}
}

func TestCacheHeader_OffWhenZero(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newTestRouter(Options{Fetcher: fetcher})

	w := get(r, "/availability/2026-01-15")
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Fatalf("expected no cache header with zero max age, got %q", got)
	}
}

// O rate limit entra só nas rotas de disponibilidade; /, /healthz ficam
// sempre de fora.
func TestRouter_AppliesMiddlewareOnlyToAvailabilityRoutes(t *testing.T) {
	svc, err := application.NewService(
		application.Config{MaxRequests: 1, Window: time.Minute},
		infra.NewMemoryCounterStore(),
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	r := newTestRouter(Options{
		Fetcher:                &fakeFetcher{},
		AvailabilityMiddleware: []gin.HandlerFunc{ratelimit.Middleware(ratelimit.Options{Service: svc})},
	})

	if w := get(r, "/availability/2026-01-15"); w.Code != http.StatusOK {
		t.Fatalf("expected the first availability call to pass, got %d", w.Code)
	}
	if w := get(r, "/availability/2026-01-15"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the second availability call limited, got %d", w.Code)
	}
	if w := get(r, "/"); w.Code != http.StatusOK {
		t.Fatalf("expected / outside the rate limit, got %d", w.Code)
	}
	if w := get(r, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected /healthz outside the rate limit, got %d", w.Code)
	}
}
