// Package registry holds the closed mapping from task tags to the documents
// each tag requires. The table is static; there is no runtime mutation.
package registry

import (
	"fmt"
	"strings"

	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// Tag is a compliance tag known to the registry.
type Tag string

const (
	TagGST       Tag = "GST"
	TagAudit     Tag = "Audit"
	TagTDS       Tag = "TDS"
	TagIncomeTax Tag = "Income Tax"
	TagROC       Tag = "ROC"
)

// String returns the canonical tag name.
func (t Tag) String() string {
	return string(t)
}

type requirement struct {
	documentType string
	displayName  string
	required     bool
}

var tagOrder = []Tag{TagGST, TagAudit, TagTDS, TagIncomeTax, TagROC}

var table = map[Tag][]requirement{
	TagGST: {
		{"gst_certificate", "GST Registration Certificate", true},
		{"gstr1", "GSTR-1 Return", true},
		{"gstr3b", "GSTR-3B Return", true},
		{"purchase_register", "Purchase Register", false},
		{"sales_register", "Sales Register", false},
	},
	TagAudit: {
		{"trial_balance", "Trial Balance", true},
		{"bank_statement", "Bank Statements", true},
		{"audit_report", "Signed Audit Report", true},
		{"general_ledger", "General Ledger", false},
		{"fixed_asset_register", "Fixed Asset Register", false},
	},
	TagTDS: {
		{"tds_challan", "TDS Challan (ITNS 281)", true},
		{"form_26q", "Form 26Q", true},
		{"form_16a", "Form 16A", false},
		{"form_26as", "Form 26AS", false},
	},
	TagIncomeTax: {
		{"pan_card", "PAN Card", true},
		{"form_16", "Form 16", true},
		{"form_26as", "Form 26AS", true},
		{"investment_proofs", "Investment Proofs", false},
	},
	TagROC: {
		{"incorporation_certificate", "Certificate of Incorporation", true},
		{"moa_aoa", "MOA & AOA", true},
		{"board_resolution", "Board Resolution", false},
		{"director_kyc", "Director KYC", false},
	},
}

func init() {
	if err := validate(); err != nil {
		panic(err)
	}
}

// validate checks that every tag's document types are unique and non-empty.
func validate() error {
	for tag, reqs := range table {
		seen := make(map[string]bool, len(reqs))
		for _, r := range reqs {
			if r.documentType == "" {
				return fmt.Errorf("registry: empty document type under tag %q", tag)
			}
			if seen[r.documentType] {
				return fmt.Errorf("registry: duplicate document type %q under tag %q", r.documentType, tag)
			}
			seen[r.documentType] = true
		}
	}
	return nil
}

// normalize folds case and collapses whitespace for tag matching.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ParseTag matches a free-form tag to a known one, ignoring case and spacing.
func ParseTag(s string) (Tag, bool) {
	n := normalize(s)
	for _, t := range tagOrder {
		if normalize(string(t)) == n {
			return t, true
		}
	}
	return "", false
}

// KnownTags returns the registry's tags in display order.
func KnownTags() []Tag {
	return append([]Tag(nil), tagOrder...)
}

// RequirementsFor returns the ordered document requirements of a tag.
// Unknown tags yield an empty list, never an error.
func RequirementsFor(tag string) []entity.DocumentRequirement {
	t, ok := ParseTag(tag)
	if !ok {
		return []entity.DocumentRequirement{}
	}
	reqs := table[t]
	out := make([]entity.DocumentRequirement, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, entity.DocumentRequirement{
			Tag:          string(t),
			DocumentType: r.documentType,
			DisplayName:  r.displayName,
			Required:     r.required,
		})
	}
	return out
}

// Lookup finds a single requirement by tag and document type.
func Lookup(tag, documentType string) (entity.DocumentRequirement, bool) {
	for _, r := range RequirementsFor(tag) {
		if r.DocumentType == documentType {
			return r, true
		}
	}
	return entity.DocumentRequirement{}, false
}
