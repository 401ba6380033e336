package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/classify"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// SchemaVersion is the envelope schema this build reads and writes.
const SchemaVersion = "1.2"

// ErrInvalidEnvelope indicates a structurally invalid payload:
// missing required top-level keys or a non-array where an array is
// required. Fatal to the whole import, before any writes.
var ErrInvalidEnvelope = errors.New("codec: invalid envelope format")

// Envelope is the versioned container for a full exported dataset.
// Categories and Budgets pass through opaquely; the engine preserves
// them without interpreting their shape.
type Envelope struct {
	Version            string
	ExportDate         time.Time
	AppVersion         string
	Transactions       []model.Transaction
	Preferences        json.RawMessage
	TransactionHistory []model.HistoryEntry
	Accounts           []model.Account
	Categories         json.RawMessage
	Budgets            json.RawMessage
	Rules              classify.RuleSet
}

const (
	dateLayout = "2006-01-02"
)

type wireEnvelope struct {
	Version            *string         `json:"version"`
	ExportDate         *string         `json:"exportDate"`
	AppVersion         string          `json:"appVersion"`
	Transactions       json.RawMessage `json:"transactions"`
	Preferences        json.RawMessage `json:"preferences,omitempty"`
	TransactionHistory []wireHistory   `json:"transactionHistory,omitempty"`
	Accounts           []wireAccount   `json:"accounts,omitempty"`
	Categories         json.RawMessage `json:"categories,omitempty"`
	Budgets            json.RawMessage `json:"budgets,omitempty"`
	Rules              []classify.Rule `json:"rules,omitempty"`
}

type wireTransaction struct {
	ID               string          `json:"id,omitempty"`
	Date             string          `json:"date,omitempty"`
	Description      string          `json:"description,omitempty"`
	Amount           json.RawMessage `json:"amount,omitempty"`
	Category         string          `json:"category,omitempty"`
	Subcategory      string          `json:"subcategory,omitempty"`
	Account          string          `json:"account,omitempty"`
	Type             string          `json:"type,omitempty"`
	IsVerified       *bool           `json:"isVerified,omitempty"`
	Confidence       json.RawMessage `json:"confidence,omitempty"`
	Reasoning        string          `json:"reasoning,omitempty"`
	AddedDate        string          `json:"addedDate,omitempty"`
	LastModifiedDate string          `json:"lastModifiedDate,omitempty"`
	ReimbursementID  string          `json:"reimbursementId,omitempty"`
}

type wireHistory struct {
	ID            string           `json:"id"`
	TransactionID string           `json:"transactionId"`
	Timestamp     string           `json:"timestamp"`
	Data          *wireTransaction `json:"data,omitempty"`
	Note          string           `json:"note,omitempty"`
}

type wireAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Institution string `json:"institution,omitempty"`
	LastFour    string `json:"lastFour,omitempty"`
}

// Encode serializes an envelope to its JSON wire form. Amounts are
// emitted as plain JSON numbers and dates in forms that parse back
// to the same calendar date.
func Encode(env Envelope) ([]byte, error) {
	version := env.Version
	if version == "" {
		version = SchemaVersion
	}
	we := wireEnvelope{
		Version:     &version,
		AppVersion:  env.AppVersion,
		Preferences: env.Preferences,
		Categories:  env.Categories,
		Budgets:     env.Budgets,
		Rules:       env.Rules,
	}
	exportDate := env.ExportDate.UTC().Format(time.RFC3339)
	we.ExportDate = &exportDate

	txns := make([]wireTransaction, 0, len(env.Transactions))
	for _, txn := range env.Transactions {
		txns = append(txns, encodeTransaction(txn))
	}
	raw, err := json.Marshal(txns)
	if err != nil {
		return nil, fmt.Errorf("encoding transactions: %w", err)
	}
	we.Transactions = raw

	for _, h := range env.TransactionHistory {
		we.TransactionHistory = append(we.TransactionHistory, encodeHistory(h))
	}
	for _, a := range env.Accounts {
		we.Accounts = append(we.Accounts, wireAccount{
			ID: a.ID, Name: a.Name, Type: string(a.Type), Institution: a.Institution, LastFour: a.LastFour,
		})
	}

	data, err := json.Marshal(we)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

func encodeTransaction(txn model.Transaction) wireTransaction {
	verified := txn.IsVerified
	w := wireTransaction{
		ID:              txn.ID,
		Date:            txn.Date.Format(dateLayout),
		Description:     txn.Description,
		Amount:          json.RawMessage(txn.Amount.String()),
		Category:        txn.Category,
		Subcategory:     txn.Subcategory,
		Account:         txn.Account,
		Type:            string(txn.Type),
		IsVerified:      &verified,
		Reasoning:       txn.Reasoning,
		ReimbursementID: txn.ReimbursementID,
	}
	if !txn.Confidence.IsZero() {
		w.Confidence = json.RawMessage(txn.Confidence.String())
	}
	if !txn.AddedDate.IsZero() {
		w.AddedDate = txn.AddedDate.UTC().Format(time.RFC3339)
	}
	if !txn.LastModifiedDate.IsZero() {
		w.LastModifiedDate = txn.LastModifiedDate.UTC().Format(time.RFC3339)
	}
	return w
}

func encodeHistory(h model.HistoryEntry) wireHistory {
	data := encodeTransaction(h.Data)
	return wireHistory{
		ID:            h.ID,
		TransactionID: h.TransactionID,
		Timestamp:     h.Timestamp.UTC().Format(time.RFC3339),
		Data:          &data,
		Note:          h.Note,
	}
}

// DecodedEnvelope is the outcome of decoding a wire payload: typed
// top-level fields plus per-row transaction outcomes, so a bad row
// skips while the rest proceed.
type DecodedEnvelope struct {
	Version            string
	ExportDate         time.Time
	AppVersion         string
	Rows               []DecodedRow
	Preferences        json.RawMessage
	TransactionHistory []model.HistoryEntry
	Accounts           []model.Account
	Categories         json.RawMessage
	Budgets            json.RawMessage
	Rules              classify.RuleSet
}

// DecodedRow is one transaction row: either a transaction or the
// reason it could not be decoded.
type DecodedRow struct {
	Row int
	Txn model.Transaction
	Err error
}

// Decode parses and shape-checks a wire payload. Unknown fields at
// any level are ignored; fields missing because the payload predates
// the current schema are defaulted by the migration table, with now
// stamping lifecycle dates. Structural problems return
// ErrInvalidEnvelope.
func Decode(data []byte, now time.Time) (DecodedEnvelope, error) {
	var we wireEnvelope
	if err := json.Unmarshal(data, &we); err != nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if we.Version == nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: missing required key %q", ErrInvalidEnvelope, "version")
	}
	if we.ExportDate == nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: missing required key %q", ErrInvalidEnvelope, "exportDate")
	}
	if we.Transactions == nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: missing required key %q", ErrInvalidEnvelope, "transactions")
	}

	var rawRows []json.RawMessage
	if err := json.Unmarshal(we.Transactions, &rawRows); err != nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: transactions is not an array", ErrInvalidEnvelope)
	}

	exportDate, err := parseFlexibleTime(*we.ExportDate)
	if err != nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: invalid exportDate %q", ErrInvalidEnvelope, *we.ExportDate)
	}

	env := DecodedEnvelope{
		Version:     *we.Version,
		ExportDate:  exportDate,
		AppVersion:  we.AppVersion,
		Preferences: we.Preferences,
		Categories:  we.Categories,
		Budgets:     we.Budgets,
		Rules:       classify.RuleSet(we.Rules),
	}

	for i, raw := range rawRows {
		row := DecodedRow{Row: i + 1}
		var wt wireTransaction
		if err := json.Unmarshal(raw, &wt); err != nil {
			row.Err = fmt.Errorf("row is not an object: %w", err)
			env.Rows = append(env.Rows, row)
			continue
		}
		applyMigrations(&wt, env.Version, now)
		row.Txn, row.Err = decodeTransaction(wt, now)
		env.Rows = append(env.Rows, row)
	}

	for _, wh := range we.TransactionHistory {
		h, err := decodeHistory(wh, now)
		if err != nil {
			// History is an audit trail; a malformed entry is dropped
			// rather than failing the envelope.
			continue
		}
		env.TransactionHistory = append(env.TransactionHistory, h)
	}

	for _, wa := range we.Accounts {
		env.Accounts = append(env.Accounts, model.Account{
			ID: wa.ID, Name: wa.Name, Type: model.AccountType(wa.Type),
			Institution: wa.Institution, LastFour: wa.LastFour,
		})
	}
	return env, nil
}

func decodeTransaction(w wireTransaction, now time.Time) (model.Transaction, error) {
	amount, err := decodeAmount(w.Amount)
	if err != nil {
		return model.Transaction{}, err
	}

	date, err := parseFlexibleTime(w.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid date %q", w.Date)
	}

	txn := model.Transaction{
		ID:              w.ID,
		Date:            model.Day(date),
		Description:     w.Description,
		Amount:          amount,
		Category:        w.Category,
		Subcategory:     w.Subcategory,
		Account:         w.Account,
		Type:            model.TransactionType(w.Type),
		Reasoning:       w.Reasoning,
		ReimbursementID: w.ReimbursementID,
	}
	if w.IsVerified != nil {
		txn.IsVerified = *w.IsVerified
	}
	if len(w.Confidence) > 0 {
		// Optional metadata: an unreadable confidence is dropped, not
		// a reason to skip the row.
		if c, err := decodeAmount(w.Confidence); err == nil {
			txn.Confidence = c
		}
	}
	if w.AddedDate != "" {
		if ts, err := parseFlexibleTime(w.AddedDate); err == nil {
			txn.AddedDate = ts
		}
	}
	if w.LastModifiedDate != "" {
		if ts, err := parseFlexibleTime(w.LastModifiedDate); err == nil {
			txn.LastModifiedDate = ts
		}
	}

	// Lifecycle dates default to the import time whenever absent,
	// whatever version the payload claims.
	if txn.AddedDate.IsZero() {
		txn.AddedDate = now.UTC()
	}
	if txn.LastModifiedDate.IsZero() {
		txn.LastModifiedDate = txn.AddedDate
	}

	// An older payload may omit the type entirely; derive it from
	// sign so the validator's mandatory-type check still holds.
	if txn.Type == "" {
		if txn.Amount.IsPositive() {
			txn.Type = model.TypeIncome
		} else {
			txn.Type = model.TypeExpense
		}
	}
	return txn, nil
}

// decodeAmount accepts a JSON number or a numeric string and rejects
// everything else: NaN, Infinity, null, non-numeric text.
func decodeAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Decimal{}, errors.New("missing amount")
	}

	text := string(raw)
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		text = str
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %s is not a finite number", string(raw))
	}
	return d, nil
}

func decodeHistory(w wireHistory, now time.Time) (model.HistoryEntry, error) {
	ts, err := parseFlexibleTime(w.Timestamp)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("invalid timestamp %q", w.Timestamp)
	}
	h := model.HistoryEntry{
		ID:            w.ID,
		TransactionID: w.TransactionID,
		Timestamp:     ts,
		Note:          w.Note,
	}
	if w.Data != nil {
		if txn, err := decodeTransaction(*w.Data, now); err == nil {
			h.Data = txn
		}
	}
	return h, nil
}

func parseFlexibleTime(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02T15:04:05.999Z0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
