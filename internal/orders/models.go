package orders

import "time"

type MenuStatus string

const (
	MenuDraft     MenuStatus = "DRAFT"
	MenuActive    MenuStatus = "ACTIVE"
	MenuClosed    MenuStatus = "CLOSED"
	MenuCancelled MenuStatus = "CANCELLED"
)

type OptionType string

const (
	OptionSelect   OptionType = "SELECT"   // exactly one value when chosen
	OptionCheckbox OptionType = "CHECKBOX" // zero or more values
)

// OptionGroup is one configurable choice on a menu, e.g. "rice size" or
// "side dishes". Values is the closed set of accepted selections.
type OptionGroup struct {
	Key      string     `json:"key"`
	Label    string     `json:"label"`
	Type     OptionType `json:"type"`
	Required bool       `json:"required"`
	Values   []string   `json:"values"`
}

// Menu is a single day's lunch offering. It is created and edited by the menu
// management tooling; this service only reads it.
type Menu struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Price         Money         `json:"price_cents"`
	AvailableDate time.Time     `json:"available_date"` // delivery day (date component only)
	OrderDeadline time.Time     `json:"order_deadline"` // must be before AvailableDate
	Status        MenuStatus    `json:"status"`
	MaxQuantity   int           `json:"max_quantity"` // 0 = unlimited
	OptionGroups  []OptionGroup `json:"option_groups"`
}

// UserInfo is the orderer's declared attributes, snapshotted onto the order
// at order time. The order row, not the user directory, is the record of what
// was declared.
type UserInfo struct {
	Department  string `json:"department"`
	DisplayName string `json:"display_name"`
	Gender      string `json:"gender"`
	AgeBracket  string `json:"age_bracket"`
}

type Order struct {
	ID          string              `json:"id"`
	OrderNumber OrderNumber         `json:"order_number"`
	UserID      string              `json:"user_id"`
	MenuID      string              `json:"menu_id"`
	UserInfo    UserInfo            `json:"user_info"`
	Options     map[string][]string `json:"options"` // group key -> selected values
	Status      Status              `json:"status"`
	OrderedAt   time.Time           `json:"ordered_at"`
	ModifiedAt  *time.Time          `json:"modified_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
}

// OptionCount is one row of the admin tally: how many active orders picked
// a given value within a group.
type OptionCount struct {
	GroupKey string `json:"group_key"`
	Value    string `json:"value"`
	Count    int    `json:"count"`
}
