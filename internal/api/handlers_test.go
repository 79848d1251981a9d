package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func queryContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestForecastQueryFromRequest_Basics(t *testing.T) {
	q := forecastQueryFromRequest(queryContext("/api/v1/forecast?period=next_quarter&owner=%20alice%20"))

	if q.Period != "next_quarter" {
		t.Fatalf("expected period next_quarter, got %q", q.Period)
	}
	if q.Owner != "alice" {
		t.Fatalf("expected trimmed owner, got %q", q.Owner)
	}
	if q.ExcludeOverdue {
		t.Fatal("exclude_overdue should default to false")
	}
}

func TestForecastQueryFromRequest_ExcludeOverdue(t *testing.T) {
	for _, raw := range []string{"1", "true", "TRUE"} {
		q := forecastQueryFromRequest(queryContext("/x?exclude_overdue=" + raw))
		if !q.ExcludeOverdue {
			t.Fatalf("expected %q to enable the filter", raw)
		}
	}
	q := forecastQueryFromRequest(queryContext("/x?exclude_overdue=0"))
	if q.ExcludeOverdue {
		t.Fatal("expected 0 to leave the filter off")
	}
}

func TestForecastQueryFromRequest_DatePair(t *testing.T) {
	q := forecastQueryFromRequest(queryContext("/x?start_date=2026-01-10&end_date=2026-01-20"))
	if q.StartDate == nil || q.EndDate == nil {
		t.Fatal("expected both dates to parse")
	}
	if q.StartDate.Day() != 10 || q.EndDate.Day() != 20 {
		t.Fatalf("unexpected dates: %v .. %v", q.StartDate, q.EndDate)
	}

	// Half a pair is ignored; the named period stays in charge.
	q = forecastQueryFromRequest(queryContext("/x?period=current_month&start_date=2026-01-10"))
	if q.StartDate != nil || q.EndDate != nil {
		t.Fatal("expected incomplete date pair to be dropped")
	}
}

func TestScenarioRequest_FlexibleDates(t *testing.T) {
	body := `{
		"period": "current_quarter",
		"overrides": [
			{"id": "abc", "new_amount": 5000, "new_close_date": "2026-04-15"},
			{"id": "def", "new_stage": "Closed Won"}
		]
	}`

	var req scenarioRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(req.Overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(req.Overrides))
	}
	o := req.Overrides[0]
	if o.NewAmount == nil || *o.NewAmount != 5000 {
		t.Fatalf("unexpected amount override: %v", o.NewAmount)
	}
	if o.NewCloseDate == nil || o.NewCloseDate.IsZero() {
		t.Fatal("expected date-only close date to parse")
	}
	if o.NewCloseDate.Day() != 15 {
		t.Fatalf("unexpected close date: %v", o.NewCloseDate)
	}
	if req.Overrides[1].NewAmount != nil {
		t.Fatal("absent amount must stay nil")
	}
	if got := *req.Overrides[1].NewStage; got != "Closed Won" {
		t.Fatalf("unexpected stage override: %q", got)
	}
}
