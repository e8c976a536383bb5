// Package invoice turns a vendor VAT-invoice recognition payload into a fixed,
// normalized record.
package invoice

// Record is the canonical invoice schema. Every field is always present; an
// empty string means the vendor did not return a usable value.
type Record struct {
	InvoiceType   string `json:"invoice_type"`
	InvoiceCode   string `json:"invoice_code"`
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	PurchaserName string `json:"purchaser_name"`
	SellerName    string `json:"seller_name"`
	Amount        string `json:"amount"`
	TaxRate       string `json:"tax_rate"`
	TaxAmount     string `json:"tax_amount"`
	TotalWithTax  string `json:"total_with_tax"`
	Remarks       string `json:"remarks"`
}

// Values returns the fields in column order.
func (r Record) Values() []string {
	return []string{
		r.InvoiceType,
		r.InvoiceCode,
		r.InvoiceNumber,
		r.Date,
		r.PurchaserName,
		r.SellerName,
		r.Amount,
		r.TaxRate,
		r.TaxAmount,
		r.TotalWithTax,
		r.Remarks,
	}
}

// IsEmpty reports whether no field carries a value.
func (r Record) IsEmpty() bool {
	return r == Record{}
}
