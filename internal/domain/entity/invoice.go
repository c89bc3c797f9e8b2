package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SupportedCurrency is the only currency code accepted by this version.
const SupportedCurrency = "USD"

// Amounts carry at most MaxAmountScale fractional digits and
// MaxAmountIntegerDigits integer digits.
const (
	MaxAmountScale         = 6
	MaxAmountIntegerDigits = 15
)

// Invoice is a purchase invoice recorded against a construction project.
type Invoice struct {
	ID            Identity            `json:"id"`
	VendorName    string              `json:"vendor_name"`
	InvoiceNumber string              `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	TaxAmount     decimal.Decimal     `json:"tax_amount"`
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	Currency      string              `json:"currency"`
	IssueDate     time.Time           `json:"issue_date"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
	ProjectID     string              `json:"project_id,omitempty"`
	ProjectName   string              `json:"project_name,omitempty"`
	Category      Category            `json:"category"`
	Status        Status              `json:"status"`
	Notes         string              `json:"notes,omitempty"`
	FileURI       string              `json:"file_uri"`
	ThumbnailURI  string              `json:"thumbnail_uri,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// InvoiceFields holds raw, user-entered field values before normalization.
// Amount and TaxAmount are kept as text so that malformed input can be
// reported instead of silently coerced.
type InvoiceFields struct {
	ID            Identity   `json:"id"`
	VendorName    string     `json:"vendor_name"`
	InvoiceNumber string     `json:"invoice_number"`
	Amount        string     `json:"amount"`
	TaxAmount     string     `json:"tax_amount"`
	Currency      string     `json:"currency"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ProjectID     string     `json:"project_id"`
	ProjectName   string     `json:"project_name"`
	Category      Category   `json:"category"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes"`
	FileURI       string     `json:"file_uri"`
	ThumbnailURI  string     `json:"thumbnail_uri"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewInvoice normalizes raw field values into an Invoice and derives
// TotalAmount. It has no side effects; the first offending field is
// reported as a *ValidationError.
func NewInvoice(f InvoiceFields) (*Invoice, error) {
	vendor := strings.TrimSpace(f.VendorName)
	if vendor == "" {
		return nil, &ValidationError{Field: FieldVendorName, Reason: "is required"}
	}

	fileURI := strings.TrimSpace(f.FileURI)
	if fileURI == "" {
		return nil, &ValidationError{Field: FieldFileURI, Reason: "an attachment is required"}
	}

	amount, err := parseAmount(FieldAmount, f.Amount, false)
	if err != nil {
		return nil, err
	}

	tax, err := parseAmount(FieldTaxAmount, f.TaxAmount, true)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(f.Currency))
	if currency == "" {
		currency = SupportedCurrency
	}
	if currency != SupportedCurrency {
		return nil, &ValidationError{Field: FieldCurrency, Reason: "only " + SupportedCurrency + " is supported"}
	}

	category := f.Category
	if category == "" {
		category = CategoryOther
	}
	if !category.IsValid() {
		return nil, &ValidationError{Field: FieldCategory, Reason: "unknown category " + string(category)}
	}

	projectID := strings.TrimSpace(f.ProjectID)
	status := f.Status
	if status == "" {
		status = StatusUnassigned
		if projectID != "" {
			status = StatusAttachedToProject
		}
	}
	if !status.IsValid() {
		return nil, &ValidationError{Field: FieldStatus, Reason: "unknown status " + string(status)}
	}

	inv := &Invoice{
		ID:            f.ID,
		VendorName:    vendor,
		InvoiceNumber: strings.TrimSpace(f.InvoiceNumber),
		Amount:        amount,
		TaxAmount:     tax,
		Currency:      currency,
		IssueDate:     f.IssueDate,
		DueDate:       copyTime(f.DueDate),
		ProjectID:     projectID,
		ProjectName:   strings.TrimSpace(f.ProjectName),
		Category:      category,
		Status:        status,
		Notes:         f.Notes,
		FileURI:       fileURI,
		ThumbnailURI:  strings.TrimSpace(f.ThumbnailURI),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	inv.Recompute()

	return inv, nil
}

// Recompute derives TotalAmount from Amount and TaxAmount.
func (i *Invoice) Recompute() {
	i.TotalAmount = decimal.NewNullDecimal(i.Amount.Add(i.TaxAmount))
}

// EffectiveTotal returns TotalAmount, falling back to Amount when no total
// has been derived.
func (i *Invoice) EffectiveTotal() decimal.Decimal {
	if i.TotalAmount.Valid {
		return i.TotalAmount.Decimal
	}
	return i.Amount
}

// Validate checks the invariants required before a record may be persisted
// to the store of record.
func (i *Invoice) Validate() error {
	if strings.TrimSpace(i.VendorName) == "" {
		return &ValidationError{Field: FieldVendorName, Reason: "is required"}
	}
	if strings.TrimSpace(i.FileURI) == "" {
		return &ValidationError{Field: FieldFileURI, Reason: "an attachment is required"}
	}
	if i.Amount.IsNegative() {
		return &ValidationError{Field: FieldAmount, Reason: "must not be negative"}
	}
	if i.TaxAmount.IsNegative() {
		return &ValidationError{Field: FieldTaxAmount, Reason: "must not be negative"}
	}
	if !i.Category.IsValid() {
		return &ValidationError{Field: FieldCategory, Reason: "unknown category " + string(i.Category)}
	}
	if !i.Status.IsValid() {
		return &ValidationError{Field: FieldStatus, Reason: "unknown status " + string(i.Status)}
	}
	return nil
}

// Fields converts the record back into editable field values.
func (i *Invoice) Fields() InvoiceFields {
	return InvoiceFields{
		ID:            i.ID,
		VendorName:    i.VendorName,
		InvoiceNumber: i.InvoiceNumber,
		Amount:        i.Amount.String(),
		TaxAmount:     i.TaxAmount.String(),
		Currency:      i.Currency,
		IssueDate:     i.IssueDate,
		DueDate:       copyTime(i.DueDate),
		ProjectID:     i.ProjectID,
		ProjectName:   i.ProjectName,
		Category:      i.Category,
		Status:        i.Status,
		Notes:         i.Notes,
		FileURI:       i.FileURI,
		ThumbnailURI:  i.ThumbnailURI,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

// Clone returns a deep copy of the record.
func (i *Invoice) Clone() *Invoice {
	if i == nil {
		return nil
	}
	c := *i
	c.DueDate = copyTime(i.DueDate)
	return &c
}

func parseAmount(field, raw string, optional bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, &ValidationError{Field: field, Reason: "is required"}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must not be negative"}
	}
	// Bounds use the exponent and coefficient length; no rescale happens
	// before they pass.
	if d.Exponent() < -MaxAmountScale || d.NumDigits()+int(d.Exponent()) > MaxAmountIntegerDigits {
		return decimal.Zero, &ValidationError{Field: field, Reason: "out of range"}
	}
	return d, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
