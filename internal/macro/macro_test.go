package macro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
)

type recordingResolver struct {
	calls []string
	err   error
}

func (r *recordingResolver) CurrentWeekCode(_ context.Context, code string, date time.Time) (string, error) {
	r.calls = append(r.calls, code+"@"+date.Format("2006-01-02"))
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("%s%d", code, len(r.calls)), nil
}

func copenhagen(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestReplace_WeekArithmetic(t *testing.T) {
	asOf := time.Date(2023, 6, 16, 12, 0, 0, 0, time.UTC)
	s := NewSubstitutor(nil, copenhagen(t), nil)

	tests := []struct {
		template string
		want     string
	}{
		{"${__WEEK_PLUS_3__}", "202327"},
		{"${__WEEK_MINUS_3__}", "202321"},
		{"${__WEEK_PLUS_0__}", "202324"},
		{"term.kk:${__NEXTWEEK_DBF__}", "term.kk:DBF202325"},
		{"${__WEEK_PLUS_30__}", "202402"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			got, err := s.Replace(context.Background(), tt.template, asOf)
			if err != nil {
				t.Fatalf("Replace: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplace_Timestamps(t *testing.T) {
	asOf := time.Date(2023, 6, 16, 12, 34, 56, 0, time.UTC)
	wm := time.Date(2023, 6, 15, 22, 10, 5, 0, time.FixedZone("CEST", 2*3600))
	s := NewSubstitutor(&wm, copenhagen(t), nil)

	got, err := s.Replace(context.Background(), "modified:[${__TIME_OF_LAST_HARVEST__} TO ${__NOW__}]", asOf)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	want := "modified:[2023-06-15T20:10:00Z TO 2023-06-16T12:34:00Z]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Contains(got, "NOW") {
		t.Errorf("NOW left in output: %q", got)
	}
}

func TestReplace_UnsetWatermarkIsEpoch(t *testing.T) {
	s := NewSubstitutor(nil, time.UTC, nil)
	got, err := s.Replace(context.Background(), "${__TIME_OF_LAST_HARVEST__}", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got != "1970-01-01T00:00:00Z" {
		t.Errorf("got %q", got)
	}
}

func TestReplace_UnknownPlaceholdersAreLiteral(t *testing.T) {
	s := NewSubstitutor(nil, time.UTC, &recordingResolver{})
	template := "datefield:[__TIME_OF_LAST_HARVEST__ TO ${__THEN__}]"

	got, err := s.Replace(context.Background(), template, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got != template {
		t.Errorf("got %q, want literal %q", got, template)
	}
}

func TestReplace_Deterministic(t *testing.T) {
	asOf := time.Date(2023, 6, 16, 12, 0, 0, 0, time.UTC)
	wm := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	template := "a:${__TIME_OF_LAST_HARVEST__} b:${__WEEK_MINUS_1__} c:${__NEXTWEEK_BKM__}"
	s := NewSubstitutor(&wm, copenhagen(t), nil)

	first, err := s.Replace(context.Background(), template, asOf)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := s.Replace(context.Background(), template, asOf)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("run %d: %q != %q", i, again, first)
		}
	}
}

func TestReplace_WeekCodeCallsResolverPerOccurrence(t *testing.T) {
	asOf := time.Date(2023, 6, 16, 12, 0, 0, 0, time.UTC)
	resolver := &recordingResolver{}
	s := NewSubstitutor(nil, copenhagen(t), resolver)

	got, err := s.Replace(context.Background(), "${__WEEKCODE_DPF__} OR ${__WEEKCODE_DPF_MINUS_2__}", asOf)
	if err != nil {
		t.Fatal(err)
	}
	if got != "DPF1 OR DPF2" {
		t.Errorf("got %q", got)
	}
	wantCalls := []string{"DPF@2023-06-16", "DPF@2023-06-02"}
	if len(resolver.calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", resolver.calls, wantCalls)
	}
	for i := range wantCalls {
		if resolver.calls[i] != wantCalls[i] {
			t.Errorf("call %d = %s, want %s", i, resolver.calls[i], wantCalls[i])
		}
	}

	// a second invocation calls the resolver again
	if _, err := s.Replace(context.Background(), "${__WEEKCODE_DPF__}", asOf); err != nil {
		t.Fatal(err)
	}
	if len(resolver.calls) != 3 {
		t.Errorf("expected no caching across calls, got %d calls", len(resolver.calls))
	}
}

func TestReplace_ResolverError(t *testing.T) {
	s := NewSubstitutor(nil, time.UTC, &recordingResolver{err: errors.New("boom")})
	_, err := s.Replace(context.Background(), "x:${__WEEKCODE_DPF__}", time.Now())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected resolver error, got %v", err)
	}
}

func TestHTTPWeekResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/date/DPF/2023-06-16" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weekCode":"DPF202326","year":2023,"weekNumber":26}`))
	}))
	defer server.Close()

	resolver := NewHTTPWeekResolver(httpclient.NewClient(httpclient.DefaultClientConfig(server.URL)))
	code, err := resolver.CurrentWeekCode(context.Background(), "DPF", time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentWeekCode: %v", err)
	}
	if code != "DPF202326" {
		t.Errorf("code = %q", code)
	}
}
