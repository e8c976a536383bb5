package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
)

// Vendor keys of the vat_invoice words_result payload.
const (
	keyInvoiceType      = "InvoiceType"
	keyInvoiceCode      = "InvoiceCode"
	keyInvoiceNum       = "InvoiceNum"
	keyInvoiceDate      = "InvoiceDate"
	keyPurchaserName    = "PurchaserName"
	keySellerName       = "SellerName"
	keyTotalAmount      = "TotalAmount"
	keyAmountInFiguers  = "AmountInFiguers" // sic, vendor spelling
	keyRemarks          = "Remarks"
	keyCommodityTaxRate = "CommodityTaxRate"
	keyTotalTax         = "TotalTax"
)

type fieldRule struct {
	key       string
	set       func(*Record, string)
	normalize func(string) string
}

// directFields maps vendor keys onto record fields. Order is irrelevant.
var directFields = []fieldRule{
	{key: keyInvoiceType, set: func(r *Record, v string) { r.InvoiceType = v }},
	{key: keyInvoiceCode, set: func(r *Record, v string) { r.InvoiceCode = v }},
	{key: keyInvoiceNum, set: func(r *Record, v string) { r.InvoiceNumber = v }},
	{key: keyInvoiceDate, set: func(r *Record, v string) { r.Date = v }},
	{key: keyPurchaserName, set: func(r *Record, v string) { r.PurchaserName = v }},
	{key: keySellerName, set: func(r *Record, v string) { r.SellerName = v }},
	{key: keyTotalAmount, set: func(r *Record, v string) { r.Amount = v }, normalize: NormalizeAmount},
	{key: keyAmountInFiguers, set: func(r *Record, v string) { r.TotalWithTax = v }, normalize: NormalizeAmount},
	{key: keyRemarks, set: func(r *Record, v string) { r.Remarks = v }},
	{key: keyTotalTax, set: func(r *Record, v string) { r.TaxAmount = v }, normalize: NormalizeTaxAmount},
}

// Extractor maps a page payload onto a Record. It never fails: a field that
// cannot be converted is logged and left empty.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract builds a Record from one page result. A nil or empty page yields
// the zero Record.
func (e *Extractor) Extract(page ocr.PageResult) Record {
	var rec Record
	if len(page) == 0 {
		return rec
	}

	for _, f := range directFields {
		raw, ok := page[f.key]
		if !ok {
			continue
		}
		s, ok := stringValue(raw)
		if !ok {
			e.warn(f.key, raw, "unexpected value type")
			continue
		}
		if f.normalize != nil && s != "" {
			n := f.normalize(s)
			if n == "" {
				e.warn(f.key, raw, "not a number")
			}
			s = n
		}
		f.set(&rec, s)
	}

	if raw, ok := page[keyCommodityTaxRate]; ok {
		if s, ok := firstWord(raw); ok && s != "" {
			rec.TaxRate = NormalizeTaxRate(s)
			if rec.TaxRate == "" {
				e.warn(keyCommodityTaxRate, raw, "not a percentage")
			}
		}
	}
	return rec
}

func (e *Extractor) warn(key string, raw any, reason string) {
	e.logger.Warn("invoice.field.conversion_failed",
		"field", key,
		"raw", fmt.Sprintf("%v", raw),
		"reason", reason,
	)
}

// stringValue accepts the scalar shapes the vendor is known to emit, plus the
// [{"word": ...}] wrapper used for row-based fields.
func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case []any, map[string]any:
		return firstWord(t)
	default:
		return "", false
	}
}

// firstWord returns the "word" of the first element of a row list, or the
// value itself when it is already a scalar.
func firstWord(v any) (string, bool) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return "", true
		}
		return firstWord(t[0])
	case map[string]any:
		w, ok := t["word"]
		if !ok {
			return "", true
		}
		return stringValue(w)
	case []map[string]any:
		if len(t) == 0 {
			return "", true
		}
		return firstWord(t[0])
	default:
		return stringValue(t)
	}
}
