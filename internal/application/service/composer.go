package service

import (
	"strings"
	"time"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/pkg/utils"
)

const dateLayout = "2006-01-02"

// Draft is a working copy of an invoice being created or edited. Prior is
// the record the draft will replace, nil in create mode.
type Draft struct {
	Fields entity.InvoiceFields `json:"fields"`
	Prior  *entity.Invoice      `json:"prior,omitempty"`

	issueDateEdited bool
}

// Clone returns a deep copy of the draft
func (d *Draft) Clone() *Draft {
	c := &Draft{Fields: d.Fields, Prior: d.Prior.Clone(), issueDateEdited: d.issueDateEdited}
	if d.Fields.DueDate != nil {
		due := *d.Fields.DueDate
		c.Fields.DueDate = &due
	}
	return c
}

// DraftEdit carries user field edits; nil pointers leave a field untouched.
type DraftEdit struct {
	VendorName    *string          `json:"vendor_name"`
	InvoiceNumber *string          `json:"invoice_number"`
	Amount        *string          `json:"amount"`
	TaxAmount     *string          `json:"tax_amount"`
	IssueDate     *time.Time       `json:"issue_date"`
	DueDate       *time.Time       `json:"due_date"`
	ClearDueDate  bool             `json:"clear_due_date"`
	ProjectID     *string          `json:"project_id"`
	ProjectName   *string          `json:"project_name"`
	Category      *entity.Category `json:"category"`
	Status        *entity.Status   `json:"status"`
	Notes         *string          `json:"notes"`
}

// Composer builds provisional records from user input before the store of
// record has confirmed them.
type Composer struct {
	now   func() time.Time
	newID func() entity.Identity
}

// ComposerOption configures a Composer
type ComposerOption func(*Composer)

// WithComposerClock overrides the time source
func WithComposerClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// WithDraftIDs overrides how draft identities are minted
func WithDraftIDs(newID func() entity.Identity) ComposerOption {
	return func(c *Composer) { c.newID = newID }
}

// NewComposer creates a new Composer
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		now:   time.Now,
		newID: entity.NewDraftID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartDraft seeds a working copy from an existing record (edit mode) or
// from empty defaults (create mode). IssueDate defaults to now.
func (c *Composer) StartDraft(existing *entity.Invoice) *Draft {
	d := &Draft{}
	if existing != nil {
		d.Fields = existing.Fields()
		d.Prior = existing.Clone()
	}
	if d.Fields.IssueDate.IsZero() {
		d.Fields.IssueDate = c.now()
	}
	return d
}

// ApplyEdit copies user edits into the draft.
func (c *Composer) ApplyEdit(d *Draft, edit DraftEdit) {
	f := &d.Fields
	if edit.VendorName != nil {
		f.VendorName = utils.SanitizeString(*edit.VendorName)
	}
	if edit.InvoiceNumber != nil {
		f.InvoiceNumber = utils.SanitizeString(*edit.InvoiceNumber)
	}
	if edit.Amount != nil {
		f.Amount = *edit.Amount
	}
	if edit.TaxAmount != nil {
		f.TaxAmount = *edit.TaxAmount
	}
	if edit.IssueDate != nil {
		f.IssueDate = *edit.IssueDate
		d.issueDateEdited = true
	}
	if edit.ClearDueDate {
		f.DueDate = nil
	} else if edit.DueDate != nil {
		due := *edit.DueDate
		f.DueDate = &due
	}
	if edit.ProjectID != nil {
		f.ProjectID = *edit.ProjectID
	}
	if edit.ProjectName != nil {
		f.ProjectName = utils.SanitizeString(*edit.ProjectName)
	}
	if edit.Category != nil {
		f.Category = *edit.Category
	}
	if edit.Status != nil {
		f.Status = *edit.Status
	}
	if edit.Notes != nil {
		f.Notes = utils.SanitizeNotes(*edit.Notes)
	}
}

// AttachFile points the draft at a new document. The identity is left
// alone; replacing the attachment is detected when synchronizing.
func (c *Composer) AttachFile(d *Draft, fileURI, thumbnailURI string) error {
	fileURI = strings.TrimSpace(fileURI)
	if fileURI == "" {
		return &entity.ValidationError{Field: entity.FieldFileURI, Reason: "an attachment is required"}
	}
	d.Fields.FileURI = fileURI
	d.Fields.ThumbnailURI = strings.TrimSpace(thumbnailURI)
	return nil
}

// Prefill copies extracted values into fields the user has not filled in
// yet and returns the names of the fields it set.
func (c *Composer) Prefill(d *Draft, x *port.ExtractedFields) []string {
	if x == nil {
		return nil
	}

	var applied []string
	f := &d.Fields
	fill := func(name string, dst *string, v string) {
		v = strings.TrimSpace(v)
		if *dst == "" && v != "" {
			*dst = utils.SanitizeString(v)
			applied = append(applied, name)
		}
	}

	fill(entity.FieldVendorName, &f.VendorName, x.VendorName)
	fill("invoiceNumber", &f.InvoiceNumber, x.InvoiceNumber)
	fill(entity.FieldAmount, &f.Amount, x.Amount)
	fill(entity.FieldTaxAmount, &f.TaxAmount, x.TaxAmount)

	if t, err := time.Parse(dateLayout, strings.TrimSpace(x.IssueDate)); err == nil && d.Prior == nil && !d.issueDateEdited {
		f.IssueDate = t
		applied = append(applied, "issueDate")
	}
	if t, err := time.Parse(dateLayout, strings.TrimSpace(x.DueDate)); err == nil && f.DueDate == nil {
		f.DueDate = &t
		applied = append(applied, "dueDate")
	}
	if cat := entity.Category(strings.ToLower(strings.TrimSpace(x.Category))); f.Category == "" && cat.IsValid() {
		f.Category = cat
		applied = append(applied, entity.FieldCategory)
	}

	return applied
}

// Materialize normalizes the draft into a storable record, deriving
// TotalAmount and assigning a draft identity if none exists yet. On failure
// the draft is left unchanged.
func (c *Composer) Materialize(d *Draft) (*entity.Invoice, error) {
	fields := d.Fields
	if fields.ID.IsZero() {
		fields.ID = c.newID()
	}

	now := c.now()
	if fields.IssueDate.IsZero() {
		fields.IssueDate = now
	}
	if fields.CreatedAt.IsZero() {
		fields.CreatedAt = now
	}
	fields.UpdatedAt = now

	inv, err := entity.NewInvoice(fields)
	if err != nil {
		return nil, err
	}

	d.Fields.ID = fields.ID
	d.Fields.IssueDate = fields.IssueDate
	d.Fields.CreatedAt = fields.CreatedAt
	return inv, nil
}
