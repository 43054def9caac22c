// Package catalog holds the static WhatsApp template library and the registry
// that maps a (category, stage) pair to the template sent at that point of the flow.
package catalog

import "errors"

// Stage is a position in a conversation flow.
type Stage string

const (
	StageIntro        Stage = "intro"
	StageDetails      Stage = "details"
	StageConfirmation Stage = "confirmation"
)

// Rank orders stages so transitions can be checked for monotonicity.
// Unknown stages rank 0.
func (s Stage) Rank() int {
	switch s {
	case StageIntro:
		return 1
	case StageDetails:
		return 2
	case StageConfirmation:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s.Rank() > 0
}

// CategoryKey identifies a class of business inquiry, e.g. "emergency_repair_vodoinstalater".
type CategoryKey string

// Family groups categories that share content shape (buttons, required fields).
type Family string

const (
	FamilyBooking   Family = "booking_service"
	FamilyEmergency Family = "emergency_repair"
	FamilyQuery     Family = "business_query"
	FamilyDelivery  Family = "delivery_order"
)

// Template is the content shape of one outbound message.
type Template struct {
	Name           string   `json:"name"`
	Buttons        []string `json:"buttons,omitempty"`
	RequiredFields []string `json:"required_fields,omitempty"`
	// Placeholders names the ordered body placeholder values the template expects.
	Placeholders []string `json:"placeholders,omitempty"`
}

// StageTemplate binds a template to the stage it is sent at.
type StageTemplate struct {
	Stage    Stage
	Template Template
}

var (
	// ErrMissingTemplate is returned when a category/stage pair has no template.
	ErrMissingTemplate = errors.New("catalog: missing template")

	// ErrInvalidCatalog is returned when registry entries violate the stage rules.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")

	// ErrNoNextStage is returned when asking for the stage after the last one.
	ErrNoNextStage = errors.New("catalog: no stage after final stage")
)
