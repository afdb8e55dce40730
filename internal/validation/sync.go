package validation

import (
	"fmt"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// Field limits for synced records.
const (
	MaxIDLength     = 128
	MaxNameLength   = 200
	MaxLabelLength  = 200
	MaxRemarkLength = 2000
)

// DefaultMaxMutations bounds a single sync batch when the caller passes no limit.
const DefaultMaxMutations = 1000

// ValidateSyncRequest checks the whole sync body. Any returned error means
// the batch must be rejected before a single mutation is applied.
func ValidateSyncRequest(req types.SyncRequest, maxMutations int) []ValidationError {
	if maxMutations <= 0 {
		maxMutations = DefaultMaxMutations
	}

	var c Collector
	c.Add(ValidateNonNegative("since", req.Since))

	if req.Mutations == nil {
		c.Add(&ValidationError{Field: "mutations", Message: "is required"})
		return c.Errors()
	}
	if len(req.Mutations) > maxMutations {
		c.Add(&ValidationError{
			Field:   "mutations",
			Message: fmt.Sprintf("exceeds maximum of %d entries", maxMutations),
		})
		return c.Errors()
	}

	for i, m := range req.Mutations {
		for _, err := range ValidateMutation(i, m) {
			c.Add(&err)
		}
	}
	return c.Errors()
}

// ValidateMutation checks one mutation; field names are prefixed with mutations[i].
func ValidateMutation(index int, m types.SyncMutation) []ValidationError {
	prefix := fmt.Sprintf("mutations[%d]", index)
	var c Collector

	if !m.Type.Valid() {
		allowed := make([]string, len(types.MutationTypes))
		for i, t := range types.MutationTypes {
			allowed[i] = string(t)
		}
		c.Add(ValidateEnum(prefix+".type", string(m.Type), allowed))
		return c.Errors()
	}

	switch m.Type {
	case types.MutationUpsertItem:
		if m.Item == nil {
			c.Add(&ValidationError{Field: prefix + ".item", Message: "is required"})
			break
		}
		p := prefix + ".item"
		validateID(&c, p+".id", m.Item.ID)
		validateID(&c, p+".listId", m.Item.ListID)
		validateText(&c, p+".label", m.Item.Label, MaxLabelLength, true)
		validateText(&c, p+".remark", m.Item.Remark, MaxRemarkLength, false)
		c.Add(ValidatePositive(p+".updatedAt", m.Item.UpdatedAt))

	case types.MutationUpsertList:
		if m.List == nil {
			c.Add(&ValidationError{Field: prefix + ".list", Message: "is required"})
			break
		}
		p := prefix + ".list"
		validateID(&c, p+".id", m.List.ID)
		validateText(&c, p+".name", m.List.Name, MaxNameLength, true)
		c.Add(ValidatePositive(p+".updatedAt", m.List.UpdatedAt))

	case types.MutationDeleteItem, types.MutationDeleteList:
		validateID(&c, prefix+".id", m.ID)
		c.Add(ValidatePositive(prefix+".updatedAt", m.UpdatedAt))
	}

	return c.Errors()
}

func validateID(c *Collector, field, value string) {
	if err := ValidateRequired(field, value); err != nil {
		c.Add(err)
		return
	}
	c.Add(ValidateMaxLength(field, value, MaxIDLength))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateUTF8(field, value))
}

func validateText(c *Collector, field, value string, max int, required bool) {
	if required {
		if err := ValidateRequired(field, value); err != nil {
			c.Add(err)
			return
		}
	}
	c.Add(ValidateMaxLength(field, value, max))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateUTF8(field, value))
}
