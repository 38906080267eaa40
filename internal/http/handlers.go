package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type upiDetailsPayload struct {
	PayeeVPA  string `json:"payee_vpa"`
	PayeeName string `json:"payee_name,omitempty"`
}

type cardDetailsPayload struct {
	Network  string `json:"network"`
	Last4    string `json:"last4"`
	Merchant string `json:"merchant,omitempty"`
}

type netBankingDetailsPayload struct {
	BankName  string `json:"bank_name"`
	Reference string `json:"reference"`
}

type transactionRequest struct {
	// Amount is a decimal string ("123.45"); AmountCents wins when both
	// are present.
	Amount         string                    `json:"amount,omitempty"`
	AmountCents    int64                     `json:"amount_cents,omitempty"`
	Flow           string                    `json:"flow"`
	Type           string                    `json:"type"`
	Timestamp      time.Time                 `json:"timestamp"`
	Notes          string                    `json:"notes,omitempty"`
	PayerAccountID string                    `json:"payer_account_id"`
	UPI            *upiDetailsPayload        `json:"upi,omitempty"`
	Card           *cardDetailsPayload       `json:"card,omitempty"`
	NetBanking     *netBankingDetailsPayload `json:"net_banking,omitempty"`
}

type transactionResponse struct {
	ID             string                    `json:"id"`
	AmountCents    int64                     `json:"amount_cents"`
	Flow           string                    `json:"flow"`
	Type           string                    `json:"type"`
	Timestamp      time.Time                 `json:"timestamp"`
	Category       *string                   `json:"category"`
	DisplayLabel   string                    `json:"display_category"`
	Notes          string                    `json:"notes,omitempty"`
	PayerAccountID string                    `json:"payer_account_id"`
	UPI            *upiDetailsPayload        `json:"upi,omitempty"`
	Card           *cardDetailsPayload       `json:"card,omitempty"`
	NetBanking     *netBankingDetailsPayload `json:"net_banking,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:             tx.ID,
		AmountCents:    tx.Amount.Cents,
		Flow:           string(tx.Flow),
		Type:           string(tx.Type),
		Timestamp:      tx.Timestamp,
		Category:       tx.Category,
		DisplayLabel:   tx.CategoryOrDefault(),
		Notes:          tx.Notes,
		PayerAccountID: tx.PayerAccountID,
	}
	if d := tx.Details.UPI; d != nil {
		resp.UPI = &upiDetailsPayload{PayeeVPA: d.PayeeVPA, PayeeName: d.PayeeName}
	}
	if d := tx.Details.Card; d != nil {
		resp.Card = &cardDetailsPayload{Network: d.Network, Last4: d.Last4, Merchant: d.Merchant}
	}
	if d := tx.Details.NetBanking; d != nil {
		resp.NetBanking = &netBankingDetailsPayload{BankName: d.BankName, Reference: d.Reference}
	}
	return resp
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	cents := req.AmountCents
	if cents == 0 && req.Amount != "" {
		parsed, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid amount")
			return
		}
		cents = parsed
	}

	tx := core.Transaction{
		OwnerID:        ownerFromContext(r.Context()),
		Amount:         core.Money{Cents: cents},
		Flow:           core.Flow(strings.ToUpper(req.Flow)),
		Type:           core.TransactionType(strings.ToUpper(req.Type)),
		Timestamp:      req.Timestamp,
		Notes:          req.Notes,
		PayerAccountID: req.PayerAccountID,
	}
	if req.UPI != nil {
		tx.Details.UPI = &core.UPIDetails{PayeeVPA: req.UPI.PayeeVPA, PayeeName: req.UPI.PayeeName}
	}
	if req.Card != nil {
		tx.Details.Card = &core.CardDetails{Network: req.Card.Network, Last4: req.Card.Last4, Merchant: req.Card.Merchant}
	}
	if req.NetBanking != nil {
		tx.Details.NetBanking = &core.NetBankingDetails{BankName: req.NetBanking.BankName, Reference: req.NetBanking.Reference}
	}

	created, err := s.transactions.Create(r.Context(), tx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.transactions.Get(r.Context(), ownerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	txs, err := s.transactions.List(r.Context(), ownerFromContext(r.Context()), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func parseListFilter(r *http.Request) (storage.Filter, error) {
	var f storage.Filter
	q := r.URL.Query()

	rng, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		return f, err
	}
	f.Range = rng

	if v := strings.TrimSpace(q.Get("flow")); v != "" {
		flow := core.Flow(strings.ToUpper(v))
		if !flow.Valid() {
			return f, errors.New("flow must be CREDIT or DEBIT")
		}
		f.Flow = flow
	}
	f.Category = strings.TrimSpace(q.Get("category"))
	if v := q.Get("uncategorized"); v != "" {
		uncategorized, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("uncategorized must be a boolean")
		}
		f.Uncategorized = uncategorized
	}
	return f, nil
}

type suggestionResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleRequestSuggestion(w http.ResponseWriter, r *http.Request) {
	suggestion, err := s.categorization.RequestSuggestion(r.Context(), ownerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if suggestion == nil {
		// The classifier could not help; the client falls back to manual
		// category selection.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, suggestionResponse{
		Category:   suggestion.Category,
		Confidence: suggestion.Confidence,
	})
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	tx, err := s.categorization.SetCategory(r.Context(), ownerFromContext(r.Context()), r.PathValue("id"), req.Category)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleClearCategory(w http.ResponseWriter, r *http.Request) {
	tx, err := s.categorization.ClearCategory(r.Context(), ownerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

type accountRequest struct {
	ID    string `json:"id,omitempty"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

type accountResponse struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	acc := core.Account{
		ID:      req.ID,
		OwnerID: ownerFromContext(r.Context()),
		Kind:    core.TransactionType(strings.ToUpper(req.Kind)),
		Label:   req.Label,
	}
	created, err := s.transactions.CreateAccount(r.Context(), acc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{ID: created.ID, Kind: string(created.Kind), Label: created.Label})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.transactions.ListAccounts(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, accountResponse{ID: acc.ID, Kind: string(acc.Kind), Label: acc.Label})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

type summaryRow struct {
	Category   string `json:"category"`
	TotalCents int64  `json:"total_cents"`
	Percent    int    `json:"percent"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	mode := analytics.DebitOnly
	if v := strings.TrimSpace(q.Get("flow")); v != "" {
		mode = analytics.FlowMode(strings.ToLower(v))
	}

	rows, err := s.analytics.SummarizeByCategory(r.Context(), ownerFromContext(r.Context()), rng, mode)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]summaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryRow{Category: row.Category, TotalCents: row.Total.Cents, Percent: row.Percent})
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": out})
}

type trendRow struct {
	Start      time.Time `json:"start"`
	TotalCents int64     `json:"total_cents"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	period := core.Period(strings.ToLower(strings.TrimSpace(q.Get("period"))))
	if period == "" {
		period = core.Monthly
	}

	buckets, err := s.analytics.SpendingTrend(r.Context(), ownerFromContext(r.Context()), rng, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]trendRow, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, trendRow{Start: b.Start, TotalCents: b.Total.Cents})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": out})
}

type forecastResponse struct {
	ValuesCents    []int64 `json:"values_cents"`
	PeriodsCovered int     `json:"periods_covered"`
	Category       string  `json:"category,omitempty"`
	LowConfidence  bool    `json:"low_confidence"`
	Tip            string  `json:"tip,omitempty"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	periods := 1
	if v := strings.TrimSpace(q.Get("periods")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "periods must be an integer")
			return
		}
		periods = n
	}

	method := analytics.MovingAverage
	if v := strings.TrimSpace(q.Get("method")); v != "" {
		method = analytics.Method(strings.ToUpper(v))
	}

	req := services.ForecastRequest{
		Periods:  periods,
		Method:   method,
		Period:   core.Period(strings.ToLower(strings.TrimSpace(q.Get("period")))),
		Category: strings.TrimSpace(q.Get("category")),
		WithTip:  q.Get("with_tip") == "true",
	}

	result, err := s.analytics.Forecast(r.Context(), ownerFromContext(r.Context()), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	values := make([]int64, 0, len(result.Values))
	for _, v := range result.Values {
		values = append(values, v.Cents)
	}
	writeJSON(w, http.StatusOK, forecastResponse{
		ValuesCents:    values,
		PeriodsCovered: result.PeriodsCovered,
		Category:       result.Category,
		LowConfidence:  result.LowConfidence,
		Tip:            result.Tip,
	})
}

// parseRange accepts dates ("2006-01-02") or RFC 3339 instants; empty
// values leave that bound open.
func parseRange(from, to string) (core.Range, error) {
	var r core.Range
	var err error
	if r.From, err = parseTimeParam(from); err != nil {
		return core.Range{}, errors.New("from must be a date or RFC 3339 timestamp")
	}
	if r.To, err = parseTimeParam(to); err != nil {
		return core.Range{}, errors.New("to must be a date or RFC 3339 timestamp")
	}
	return r, nil
}

func parseTimeParam(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain errors onto HTTP statuses. Unexpected
// failures are logged and hidden behind a generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidFlow),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrDetailsMismatch),
		errors.Is(err, core.ErrEmptyOwner),
		errors.Is(err, core.ErrEmptyAccount):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
