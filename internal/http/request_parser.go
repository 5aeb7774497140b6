// Package http provides the JSON API over the schedule services.
//
// This file implements decoding and validation of request bodies and query
// parameters into domain values.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
	"scadenze/internal/services"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// requestError marks input that could not be decoded at all. It maps to 400;
// well-formed input that breaks a domain rule maps to 422 instead.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

// DecodeJSON reads a single JSON object from the body into dst. Unknown
// fields are rejected. An empty body is accepted only when allowEmpty.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return badRequest("request body is empty", nil)
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest(fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes), nil)
		}
		return badRequest("invalid JSON body", err)
	}
	if dec.More() {
		return badRequest("request body must hold a single JSON object", nil)
	}
	return nil
}

// ParseDateQuery reads key from query as YYYY-MM-DD. A missing key yields
// the zero date and no error.
func ParseDateQuery(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("invalid "+key, err)
	}
	return d, nil
}

// ParseDateRange reads from and to. Either may be omitted: from defaults
// to today and to defaults to from plus defaultDays.
func ParseDateRange(query url.Values, today core.Date, defaultDays int) (core.Date, core.Date, error) {
	from, err := ParseDateQuery(query, "from")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	to, err := ParseDateQuery(query, "to")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = from.AddDays(defaultDays)
	}
	if to.Before(from) {
		return core.Date{}, core.Date{}, core.ErrReversedDateRange
	}
	return from, to, nil
}

// ParseIntQuery reads a non-negative integer; a missing key yields def.
func ParseIntQuery(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid "+key+": must be a non-negative integer", nil)
	}
	return n, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// amountField accepts an amount as a JSON number or a string; strings may
// use a decimal comma.
type amountField struct {
	text string
	set  bool
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = amountField{}
		return nil
	}
	a.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.text)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string: %w", err)
	}
	a.text = n.String()
	return nil
}

func (a amountField) magnitude() (decimal.Decimal, error) {
	return core.ParseAmount(a.text)
}

func (a amountField) signed() (decimal.Decimal, error) {
	return core.ParseSignedAmount(a.text)
}

type ruleRequest struct {
	Description          string      `json:"description"`
	SourceAccountID      string      `json:"source_account_id"`
	DestinationAccountID string      `json:"destination_account_id"`
	Kind                 string      `json:"kind"`
	Amount               amountField `json:"amount"`
	Category             string      `json:"category"`
	Frequency            string      `json:"frequency"`
	Interval             int         `json:"interval"`
	StartDate            core.Date   `json:"start_date"`
	EndDate              core.Date   `json:"end_date"`
	DayOfMonthAnchor     int         `json:"day_of_month_anchor"`
	WeekendPolicy        string      `json:"weekend_policy"`
}

func (req ruleRequest) toRule() (core.RecurrenceRule, error) {
	amount, err := req.Amount.magnitude()
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("amount %q: %w", req.Amount.text, err)
	}
	return core.RecurrenceRule{
		Description:          sanitizeInput(req.Description),
		SourceAccountID:      strings.TrimSpace(req.SourceAccountID),
		DestinationAccountID: strings.TrimSpace(req.DestinationAccountID),
		Kind:                 core.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Amount:               amount,
		Category:             sanitizeInput(req.Category),
		Frequency:            core.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency))),
		Interval:             req.Interval,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		DayOfMonthAnchor:     req.DayOfMonthAnchor,
		WeekendPolicy:        core.WeekendPolicy(strings.ToLower(strings.TrimSpace(req.WeekendPolicy))),
	}, nil
}

type overrideRequest struct {
	Date        *core.Date  `json:"date"`
	Amount      amountField `json:"amount"`
	Description *string     `json:"description"`
}

func (req overrideRequest) toEdit() (services.OverrideEdit, error) {
	edit := services.OverrideEdit{Date: req.Date}
	if edit.Date != nil && edit.Date.IsZero() {
		edit.Date = nil
	}
	if req.Amount.set {
		amount, err := req.Amount.magnitude()
		if err != nil {
			return services.OverrideEdit{}, fmt.Errorf("amount %q: %w", req.Amount.text, err)
		}
		edit.Amount = &amount
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		edit.Description = &desc
	}
	return edit, nil
}

type oneOffRequest struct {
	Description string      `json:"description"`
	Amount      amountField `json:"amount"`
	DueDate     core.Date   `json:"due_date"`
	AccountID   string      `json:"account_id"`
}

func (req oneOffRequest) toItem() (core.OneOffItem, error) {
	amount, err := req.Amount.signed()
	if err != nil {
		return core.OneOffItem{}, fmt.Errorf("amount %q: %w", req.Amount.text, err)
	}
	return core.OneOffItem{
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		DueDate:     req.DueDate,
		AccountID:   strings.TrimSpace(req.AccountID),
	}, nil
}

type paidRequest struct {
	AccountID   string    `json:"account_id"`
	SettledDate core.Date `json:"settled_date"`
}

type accountRequest struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Currency string `json:"currency"`
}

func (req accountRequest) toAccount() core.Account {
	return core.Account{
		ID:       strings.TrimSpace(req.ID),
		Label:    sanitizeInput(req.Label),
		Currency: req.Currency,
	}
}
