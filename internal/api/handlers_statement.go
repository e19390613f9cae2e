package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/transfa/banking-service/internal/app"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/statement"
)

// parseBound accepts RFC 3339 timestamps or YYYY-MM-DD dates in the handler's location.
func (h *Handlers) parseBound(r *http.Request, name string) (time.Time, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, h.location)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", app.ErrInvalidInput, name)
	}
	return t, true, nil
}

// statementRange reads from/to. A date-only `to` covers that whole day.
func (h *Handlers) statementRange(r *http.Request) (from, to time.Time, ok bool, err error) {
	from, hasFrom, err := h.parseBound(r, "from")
	if err != nil {
		return
	}
	to, hasTo, err := h.parseBound(r, "to")
	if err != nil {
		return
	}
	if hasFrom != hasTo {
		err = fmt.Errorf("%w: from and to must be supplied together", app.ErrInvalidInput)
		return
	}
	if hasTo && len(strings.TrimSpace(r.URL.Query().Get("to"))) == len(time.DateOnly) {
		to = to.AddDate(0, 0, 1)
	}
	return from, to, hasFrom, nil
}

func (h *Handlers) MiniStatementHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		h.writeServiceError(w, r, "mini_statement", err)
		return
	}
	txns, err := h.service.MiniStatement(r.Context(), accountNumber, limit)
	if err != nil {
		h.writeServiceError(w, r, "mini_statement", err)
		return
	}
	writeJSON(w, http.StatusOK, "Mini statement retrieved", txns)
}

func (h *Handlers) StatementHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	from, to, hasRange, err := h.statementRange(r)
	if err == nil && !hasRange {
		err = fmt.Errorf("%w: from and to are required", app.ErrInvalidInput)
	}
	if err != nil {
		h.writeServiceError(w, r, "statement", err)
		return
	}
	txns, err := h.service.Statement(r.Context(), accountNumber, from, to)
	if err != nil {
		h.writeServiceError(w, r, "statement", err)
		return
	}
	writeJSON(w, http.StatusOK, "Statement retrieved", txns)
}

func (h *Handlers) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	summary, err := h.service.AccountSummary(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, "Summary retrieved", summary)
}

func (h *Handlers) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	days, err := intQuery(r, "days", 30)
	if err != nil {
		h.writeServiceError(w, r, "analytics", err)
		return
	}
	series, err := h.service.SpendingAnalytics(r.Context(), accountNumber, days)
	if err != nil {
		h.writeServiceError(w, r, "analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, "Analytics retrieved", series)
}

// ExportStatementHandler streams the statement as an attachment. Without a range it
// exports the mini statement.
func (h *Handlers) ExportStatementHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := h.accountFromContext(w, r)
	if !ok {
		return
	}
	format, valid := statement.ParseFormat(r.URL.Query().Get("format"))
	if !valid {
		writeError(w, http.StatusBadRequest, "format must be csv, xlsx or pdf")
		return
	}
	from, to, hasRange, err := h.statementRange(r)
	if err != nil {
		h.writeServiceError(w, r, "export_statement", err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountNumber)
	if err != nil {
		h.writeServiceError(w, r, "export_statement", err)
		return
	}
	var txns []domain.Transaction
	if hasRange {
		txns, err = h.service.Statement(r.Context(), accountNumber, from, to)
	} else {
		var limit int
		if limit, err = intQuery(r, "limit", 0); err == nil {
			txns, err = h.service.MiniStatement(r.Context(), accountNumber, limit)
		}
	}
	if err != nil {
		h.writeServiceError(w, r, "export_statement", err)
		return
	}

	var buf bytes.Buffer
	doc := statement.Document{Account: account, Transactions: txns, GeneratedAt: time.Now().In(h.location)}
	if err := statement.Write(&buf, format, doc); err != nil {
		h.writeServiceError(w, r, "export_statement", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(accountNumber)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
