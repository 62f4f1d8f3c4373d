package orders

import (
	"fmt"
	"sort"
)

// ValidateOptions checks the selected option values against the menu's option
// groups. Every failure is collected so the caller sees all offending fields
// at once. A required SELECT group needs exactly one value; a required
// CHECKBOX group needs at least one. Every selected value must belong to its
// group's value set.
func ValidateOptions(menu Menu, selected map[string][]string) error {
	var errs ValidationErrors

	groups := make(map[string]OptionGroup, len(menu.OptionGroups))
	for _, g := range menu.OptionGroups {
		groups[g.Key] = g
	}

	for _, g := range menu.OptionGroups {
		vals := selected[g.Key]
		switch g.Type {
		case OptionSelect:
			if len(vals) == 0 {
				if g.Required {
					errs = append(errs, FieldError{Field: g.Key, Message: "a selection is required"})
				}
				continue
			}
			if len(vals) > 1 {
				errs = append(errs, FieldError{Field: g.Key, Message: "select exactly one value"})
				continue
			}
		case OptionCheckbox:
			if g.Required && len(vals) == 0 {
				errs = append(errs, FieldError{Field: g.Key, Message: "select at least one value"})
				continue
			}
		default:
			errs = append(errs, FieldError{Field: g.Key, Message: fmt.Sprintf("unsupported option type %q", g.Type)})
			continue
		}
		for _, v := range vals {
			if !groupAllows(g, v) {
				errs = append(errs, FieldError{Field: g.Key, Message: fmt.Sprintf("value %q is not offered", v)})
			}
		}
	}

	// Selections for groups the menu does not define are rejected, in
	// deterministic order.
	unknown := make([]string, 0)
	for key := range selected {
		if _, ok := groups[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, FieldError{Field: key, Message: "unknown option group"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func groupAllows(g OptionGroup, value string) bool {
	for _, v := range g.Values {
		if v == value {
			return true
		}
	}
	return false
}
