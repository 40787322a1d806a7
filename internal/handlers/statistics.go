package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"finance-tracker/internal/ledger"
)

// StatsViewModel is the data passed to the statistics view template.
type StatsViewModel struct {
	Year           int
	Month          int
	MonthName      string
	Income         float64
	Expense        float64
	Net            float64
	IncomeShare    float64
	Transactions   []TransactionItem
	PrevYear       int
	PrevMonth      int
	NextYear       int
	NextMonth      int
	IsCurrentMonth bool
}

// Statistics renders the monthly breakdown page.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	// Get year and month from query params, default to current month
	yearStr := r.URL.Query().Get("year")
	monthStr := r.URL.Query().Get("month")

	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			year = y
		}
	}
	if monthStr != "" {
		if m, err := strconv.Atoi(monthStr); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	user := GetUserFromContext(r)
	summary, err := h.app.Ledger.Month(r.Context(), user.ID, year, time.Month(month), time.Local)
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Message, http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(r.Context(), "load month", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Share of the month's volume that was income, for the bar
	incomeShare := 0.0
	if volume := summary.Income + summary.Expense; volume > 0 {
		incomeShare = summary.Income / volume * 100
	}

	// Calculate previous and next month
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	prevDate := first.AddDate(0, -1, 0)
	nextDate := first.AddDate(0, 1, 0)

	h.render(w, r, http.StatusOK, "stats.html", StatsViewModel{
		Year:           year,
		Month:          month,
		MonthName:      time.Month(month).String(),
		Income:         summary.Income,
		Expense:        summary.Expense,
		Net:            summary.Net,
		IncomeShare:    incomeShare,
		Transactions:   newTransactionItems(summary.Transactions),
		PrevYear:       prevDate.Year(),
		PrevMonth:      int(prevDate.Month()),
		NextYear:       nextDate.Year(),
		NextMonth:      int(nextDate.Month()),
		IsCurrentMonth: year == now.Year() && month == int(now.Month()),
	})
}
