package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DocumentKind identifies the type of source document that caused a stock
// change (sales order, purchase order, production order, manual adjustment...)
type DocumentKind string

const (
	DocumentKindSalesOrder      DocumentKind = "SALES_ORDER"
	DocumentKindPurchaseOrder   DocumentKind = "PURCHASE_ORDER"
	DocumentKindTransferOrder   DocumentKind = "TRANSFER_ORDER"
	DocumentKindProductionOrder DocumentKind = "PRODUCTION_ORDER"
	DocumentKindReturnOrder     DocumentKind = "RETURN_ORDER"
	DocumentKindAdjustment      DocumentKind = "ADJUSTMENT"
)

// IsValid returns true if the kind is one of the known document kinds
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindSalesOrder, DocumentKindPurchaseOrder, DocumentKindTransferOrder,
		DocumentKindProductionOrder, DocumentKindReturnOrder, DocumentKindAdjustment:
		return true
	}
	return false
}

// DocumentReference is a value object identifying the business document behind
// a stock movement or reservation. It is immutable; the zero value means
// "no document".
type DocumentReference struct {
	kind DocumentKind
	id   string
}

// NewDocumentReference creates a DocumentReference after validating the kind
func NewDocumentReference(kind DocumentKind, id string) (DocumentReference, error) {
	if !kind.IsValid() {
		return DocumentReference{}, fmt.Errorf("unknown document kind: %s", kind)
	}
	if strings.TrimSpace(id) == "" {
		return DocumentReference{}, errors.New("document id cannot be empty")
	}
	return DocumentReference{kind: kind, id: id}, nil
}

// MustNewDocumentReference creates a DocumentReference and panics on error
func MustNewDocumentReference(kind DocumentKind, id string) DocumentReference {
	ref, err := NewDocumentReference(kind, id)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseDocumentReference parses the "KIND#id" rendering back into a reference
func ParseDocumentReference(s string) (DocumentReference, error) {
	kind, id, ok := strings.Cut(s, "#")
	if !ok {
		return DocumentReference{}, fmt.Errorf("malformed document reference: %s", s)
	}
	return NewDocumentReference(DocumentKind(kind), id)
}

// Kind returns the document kind
func (r DocumentReference) Kind() DocumentKind {
	return r.kind
}

// ID returns the document identifier
func (r DocumentReference) ID() string {
	return r.id
}

// IsZero returns true if the reference points at no document
func (r DocumentReference) IsZero() bool {
	return r.kind == "" && r.id == ""
}

// Equals returns true if both references identify the same document
func (r DocumentReference) Equals(other DocumentReference) bool {
	return r.kind == other.kind && r.id == other.id
}

// String renders the reference as "KIND#id"
func (r DocumentReference) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s#%s", r.kind, r.id)
}

// MarshalJSON implements json.Marshaler
func (r DocumentReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}{
		Kind: string(r.kind),
		ID:   r.id,
	})
}

// UnmarshalJSON implements json.Unmarshaler for request binding.
// The zero reference round-trips; anything else is validated.
func (r *DocumentReference) UnmarshalJSON(data []byte) error {
	var v struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Kind == "" && v.ID == "" {
		*r = DocumentReference{}
		return nil
	}
	ref, err := NewDocumentReference(DocumentKind(v.Kind), v.ID)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
