// Package redact detects personally identifiable information in free text,
// validates candidates with checksums where the format has one, and masks
// or flags what it finds. It also carries the credential patterns used to
// keep secrets out of tool arguments and audit output.
package redact

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEntityType is returned for an entity type or action name that is
// not recognized.
var ErrUnknownEntityType = errors.New("redact: unknown entity type")

// EntityType names a class of sensitive data.
type EntityType string

const (
	TypeIBAN              EntityType = "iban"
	TypeCreditCard        EntityType = "credit_card"
	TypeURLCredentials    EntityType = "url_credentials"
	TypeEmail             EntityType = "email"
	TypeIPAddress         EntityType = "ip_address"
	TypeNationalInsurance EntityType = "national_insurance"
	TypeTaxID             EntityType = "tax_id"
	TypePhone             EntityType = "phone"
)

// EntityTypes returns every type in detector declaration order. The order
// breaks ties when overlapping candidates have equal confidence.
func EntityTypes() []EntityType {
	return []EntityType{
		TypeIBAN,
		TypeCreditCard,
		TypeURLCredentials,
		TypeEmail,
		TypeIPAddress,
		TypeNationalInsurance,
		TypeTaxID,
		TypePhone,
	}
}

// ParseEntityType validates a type name.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EntityTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// Entity is one detected span. Start and End are byte offsets into the
// scanned text.
type Entity struct {
	Type       EntityType
	Value      string
	Start      int
	End        int
	Confidence float64
}

func (e Entity) overlaps(o Entity) bool {
	return e.Start < o.End && o.Start < e.End
}

// Action says what happens to a detected entity.
type Action string

const (
	ActionMask  Action = "mask"
	ActionBlock Action = "block"
	ActionAllow Action = "allow"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionMask, ActionBlock, ActionAllow:
		return a, nil
	}
	return "", fmt.Errorf("redact: unknown action %q", s)
}
