package handler

import (
	"net/http"
	"time"

	"github.com/bazarko/marketplace-api/internal/domain/analytics"
)

type revenueResponse struct {
	TotalRevenue float64 `json:"total_revenue"`
	OrderCount   int     `json:"order_count"`
	AverageOrder float64 `json:"average_order"`
}

type dailyRevenueResponse struct {
	Day     string  `json:"day"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type statusCountResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type dashboardResponse struct {
	Revenue  revenueResponse        `json:"revenue"`
	Daily    []dailyRevenueResponse `json:"daily"`
	Statuses []statusCountResponse  `json:"statuses"`
}

func toRevenueResponse(r *analytics.Revenue) revenueResponse {
	return revenueResponse{
		TotalRevenue: r.TotalRevenue.InexactFloat64(),
		OrderCount:   r.OrderCount,
		AverageOrder: r.AverageOrder.InexactFloat64(),
	}
}

func toDailyResponses(days []analytics.DailyRevenue) []dailyRevenueResponse {
	resp := make([]dailyRevenueResponse, len(days))
	for i, d := range days {
		resp[i] = dailyRevenueResponse{
			Day:     d.Day.Format("2006-01-02"),
			Revenue: d.Revenue.InexactFloat64(),
			Orders:  d.Orders,
		}
	}
	return resp
}

func toStatusResponses(counts []analytics.StatusCount) []statusCountResponse {
	resp := make([]statusCountResponse, len(counts))
	for i, c := range counts {
		resp[i] = statusCountResponse{Status: string(c.Status), Count: c.Count}
	}
	return resp
}

// queryTime parses an RFC 3339 timestamp query parameter; a bare date is also
// accepted. Zero time means the parameter was absent or malformed and the
// service default applies.
func queryTime(r *http.Request, name string) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return time.Time{}
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	rev, err := h.analytics.Revenue(r.Context(), act, queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRevenueResponse(rev))
}

func (h *Handler) dailyRevenue(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	days, err := h.analytics.Daily(r.Context(), act, queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyResponses(days))
}

func (h *Handler) statusBreakdown(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	counts, err := h.analytics.StatusBreakdown(r.Context(), act)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponses(counts))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	d, err := h.analytics.Dashboard(r.Context(), act, queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Revenue:  toRevenueResponse(&d.Revenue),
		Daily:    toDailyResponses(d.Daily),
		Statuses: toStatusResponses(d.Statuses),
	})
}
