package http

import (
	"net/http"
	"slices"

	"scadenze/internal/core"
	applog "scadenze/internal/log"
	"scadenze/internal/schedule"
)

type failureBody struct {
	RuleID string `json:"rule_id"`
	Error  string `json:"error"`
}

type scheduleBody struct {
	From        core.Date                  `json:"from"`
	To          core.Date                  `json:"to"`
	Occurrences []core.ScheduledOccurrence `json:"occurrences"`
	Failures    []failureBody              `json:"failures,omitempty"`
}

type heatmapDay struct {
	Date core.Date `json:"date"`
	schedule.DayActivity
	Mixed bool `json:"mixed"`
	Total int  `json:"total"`
}

type heatmapBody struct {
	From core.Date    `json:"from"`
	To   core.Date    `json:"to"`
	Days []heatmapDay `json:"days"`
}

// handleSchedule serves the merged schedule for ?from=&to=. Rules that
// could not be projected are listed under failures; the rest is served.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	from, to, err := ParseDateRange(r.URL.Query(), s.today(), s.windowDays)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}

	res, err := s.schedule.Schedule(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}
	s.records.LogProjection(r.Context(), from, to, len(res.Occurrences), len(res.Failures))

	body := scheduleBody{From: from, To: to, Occurrences: res.Occurrences}
	if body.Occurrences == nil {
		body.Occurrences = []core.ScheduledOccurrence{}
	}
	for _, f := range res.Failures {
		body.Failures = append(body.Failures, failureBody{RuleID: f.RuleID, Error: f.Err.Error()})
	}
	NewJSONResponse().Body(body).Write(w)
}

// handleForecast serves the summary of the next ?days= days from ?today=
// (default: the current date). Zero days means the configured horizon.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	today, err := ParseDateQuery(query, "today")
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}
	if today.IsZero() {
		today = s.today()
	}
	days, err := ParseIntQuery(query, "days", 0)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}

	sum, err := s.schedule.Forecast(r.Context(), today, days)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}

// handleHeatmap serves per-day activity counts for every day of the range.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	from, to, err := ParseDateRange(r.URL.Query(), s.today(), s.windowDays)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}

	buckets, err := s.schedule.Heatmap(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}

	days := make([]heatmapDay, 0, len(buckets))
	for d, a := range buckets {
		days = append(days, heatmapDay{Date: d, DayActivity: a, Mixed: a.IsMixed(), Total: a.Total()})
	}
	slices.SortFunc(days, func(a, b heatmapDay) int { return a.Date.Compare(b.Date) })

	NewJSONResponse().Body(heatmapBody{From: from, To: to, Days: days}).Write(w)
}

// handleListPostings lists occurrences already posted to the ledger.
func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	if s.postings == nil {
		NotFoundError("postings are not available").Write(w)
		return
	}
	from, to, err := ParseDateRange(r.URL.Query(), s.today().AddDays(-s.windowDays), s.windowDays)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	postings, err := s.postings.ListPostings(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(newList(postings)).Write(w)
}
