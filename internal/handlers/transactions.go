package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/ledger"
	"finance-tracker/internal/metrics"
	"finance-tracker/internal/models"

	"github.com/go-chi/chi/v5"
)

// TransactionItem represents a transaction row in the ledger view.
type TransactionItem struct {
	models.Transaction
	TypeLabel string
	Time      string
}

// IndexViewModel is the data passed to the index template.
type IndexViewModel struct {
	Username     string
	Transactions []TransactionItem
	Income       float64
	Expense      float64
	Net          float64
	DefaultDate  string
	Error        string
	Form         AddFormValues
}

// AddFormValues echoes the add form back after a validation failure.
type AddFormValues struct {
	Description string
	Amount      string
	Type        string
	Date        string
}

func newTransactionItems(txs []models.Transaction) []TransactionItem {
	items := make([]TransactionItem, 0, len(txs))
	for _, t := range txs {
		items = append(items, TransactionItem{
			Transaction: t,
			TypeLabel:   t.Type.Label(),
			Time:        t.Date.Local().Format("Jan 02 2006, 15:04"),
		})
	}
	return items
}

// Index renders the user's transactions and totals.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, "", AddFormValues{})
}

func (h *Handlers) renderIndex(w http.ResponseWriter, r *http.Request, status int, formErr string, form AddFormValues) {
	user := GetUserFromContext(r)

	summary, err := h.app.Ledger.Summary(r.Context(), user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load summary", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if form.Type == "" {
		form.Type = string(models.TransactionExpense)
	}

	h.render(w, r, status, "index.html", IndexViewModel{
		Username:     user.Username,
		Transactions: newTransactionItems(summary.Transactions),
		Income:       summary.Income,
		Expense:      summary.Expense,
		Net:          summary.Net,
		DefaultDate:  time.Now().Format(ledger.DateLayout),
		Error:        formErr,
		Form:         form,
	})
}

// AddTransaction records a transaction for the current user.
func (h *Handlers) AddTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, "Invalid form submission", AddFormValues{})
		return
	}

	form := AddFormValues{
		Description: r.FormValue("description"),
		Amount:      r.FormValue("amount"),
		Type:        strings.ToLower(strings.TrimSpace(r.FormValue("type"))),
		Date:        r.FormValue("date"),
	}

	in, err := ledger.ParseAddInput(form.Description, form.Amount, form.Type, form.Date)
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			metrics.RecordTransaction("add", "invalid")
			h.renderIndex(w, r, http.StatusBadRequest, verr.Message, form)
			return
		}
		h.renderIndex(w, r, http.StatusBadRequest, "Invalid form submission", form)
		return
	}

	user := GetUserFromContext(r)
	id, err := h.app.Ledger.Add(r.Context(), user.ID, in)
	if err != nil {
		metrics.RecordTransaction("add", "error")
		h.logger.ErrorContext(r.Context(), "add transaction", "error", err, "user_id", user.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	metrics.RecordTransaction("add", "success")
	h.logger.DebugContext(r.Context(), "transaction added", "id", id, "user_id", user.ID, "type", in.Type)
	http.Redirect(w, r, "/", http.StatusFound)
}

// RemoveTransaction deletes one of the current user's transactions.
// Attempts on someone else's transaction are ignored.
func (h *Handlers) RemoveTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	user := GetUserFromContext(r)
	err = h.app.Ledger.Remove(r.Context(), user.ID, id)
	switch {
	case err == nil:
		metrics.RecordTransaction("remove", "success")
	case errors.Is(err, ledger.ErrNotFound):
		metrics.RecordTransaction("remove", "not_found")
		http.NotFound(w, r)
		return
	case errors.Is(err, ledger.ErrNotOwner):
		metrics.RecordTransaction("remove", "not_owner")
		h.logger.WarnContext(r.Context(), "remove denied", "id", id, "user_id", user.ID)
	default:
		metrics.RecordTransaction("remove", "error")
		h.logger.ErrorContext(r.Context(), "remove transaction", "error", err, "id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
