package entity

// Category classifies what an invoice paid for.
type Category string

// Invoice categories
const (
	CategoryMaterials Category = "materials"
	CategoryLabor     Category = "labor"
	CategoryEquipment Category = "equipment"
	CategoryPermit    Category = "permit"
	CategoryOther     Category = "other"
)

var validCategories = map[Category]bool{
	CategoryMaterials: true,
	CategoryLabor:     true,
	CategoryEquipment: true,
	CategoryPermit:    true,
	CategoryOther:     true,
}

// IsValid returns true if the category is one of the known categories
func (c Category) IsValid() bool {
	return validCategories[c]
}

// Status is the payment/assignment state of an invoice. It is independent of
// whether the record's identity has been confirmed by the store of record.
type Status string

// Invoice statuses
const (
	StatusUnassigned        Status = "unassigned"
	StatusAttachedToProject Status = "attached_to_project"
	StatusUnpaid            Status = "unpaid"
	StatusPaid              Status = "paid"
)

var validStatuses = map[Status]bool{
	StatusUnassigned:        true,
	StatusAttachedToProject: true,
	StatusUnpaid:            true,
	StatusPaid:              true,
}

// IsValid returns true if the status is one of the known statuses
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// Field names reported by ValidationError
const (
	FieldVendorName = "vendorName"
	FieldFileURI    = "fileUri"
	FieldAmount     = "amount"
	FieldTaxAmount  = "taxAmount"
	FieldCurrency   = "currency"
	FieldCategory   = "category"
	FieldStatus     = "status"
	FieldID         = "id"
)
