package entity

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// IdentityKind distinguishes locally minted identities from identities
// confirmed by the store of record.
type IdentityKind uint8

const (
	IdentityNone IdentityKind = iota
	IdentityDraft
	IdentityConfirmed
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityDraft:
		return "draft"
	case IdentityConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// Identity is either a Draft identity or a Confirmed identity. The zero
// value means no identity has been assigned yet.
type Identity struct {
	kind  IdentityKind
	value string
}

// DraftID wraps a locally generated identifier.
func DraftID(value string) Identity {
	return Identity{kind: IdentityDraft, value: value}
}

// ConfirmedID wraps an identifier assigned by the store of record.
func ConfirmedID(value string) Identity {
	return Identity{kind: IdentityConfirmed, value: value}
}

// NewDraftID mints a time-ordered draft identity.
func NewDraftID() Identity {
	return DraftID(newTimeOrderedID())
}

// NewConfirmedID mints a time-ordered confirmed identity. Only the store of
// record should call this.
func NewConfirmedID() Identity {
	return ConfirmedID(newTimeOrderedID())
}

func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (i Identity) Kind() IdentityKind { return i.kind }
func (i Identity) Value() string      { return i.value }
func (i Identity) IsZero() bool       { return i.kind == IdentityNone }
func (i Identity) IsDraft() bool      { return i.kind == IdentityDraft }
func (i Identity) IsConfirmed() bool  { return i.kind == IdentityConfirmed }

func (i Identity) String() string {
	if i.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%s", i.kind, i.value)
}

type identityJSON struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// MarshalJSON encodes the identity as {"kind": ..., "value": ...}, or null
// when unset.
func (i Identity) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(identityJSON{Kind: i.kind.String(), Value: i.value})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (i *Identity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Identity{}
		return nil
	}

	var raw identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode identity: %w", err)
	}
	if raw.Value == "" {
		return fmt.Errorf("decode identity: empty value")
	}

	switch raw.Kind {
	case "draft":
		*i = DraftID(raw.Value)
	case "confirmed":
		*i = ConfirmedID(raw.Value)
	default:
		return fmt.Errorf("decode identity: unknown kind %q", raw.Kind)
	}
	return nil
}
