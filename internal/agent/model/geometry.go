package model

// Variation types a geometric suggestion may apply. Each suggestion applies
// exactly one.
const (
	VariationExtendSlab   = "Extend Slab"
	VariationTerrain      = "Artificial Terrain"
	VariationCooking      = "Outdoor Cooking Feature"
	VariationPavilion     = "Small Open Pavilion"
	VariationPlanting     = "Significant Planting"
	VariationWaterFeature = "Water Feature"
)

// DefaultSuggestionsCount is how many variations the advisor asks for.
const DefaultSuggestionsCount = 2

// VariationTypes lists every valid variation type in prompt order.
var VariationTypes = []string{
	VariationExtendSlab,
	VariationTerrain,
	VariationCooking,
	VariationPavilion,
	VariationPlanting,
	VariationWaterFeature,
}

// IsVariationType reports whether name is one of VariationTypes.
func IsVariationType(name string) bool {
	for _, v := range VariationTypes {
		if v == name {
			return true
		}
	}
	return false
}

// GeometrySuggestion is one proposed modification of an outdoor space.
type GeometrySuggestion struct {
	VariationType    string `json:"variation_type" validate:"required,variation"`
	VariationName    string `json:"variation_name" validate:"required"`
	Description      string `json:"description" validate:"required"`
	ReasonForProfile string `json:"reason_for_profile"`
	EstimatedImpact  string `json:"estimated_impact"`
}

// GeometrySuggestions is the validated answer of the geometry advisor.
type GeometrySuggestions struct {
	SpaceID          string               `json:"space_id" validate:"required"`
	SpaceDetails     string               `json:"space_details"`
	UserProfile      string               `json:"user_profile"`
	ResidentDistance string               `json:"resident_distance_to_space"`
	CurrentActivity  string               `json:"current_activity_in_space"`
	Suggestions      []GeometrySuggestion `json:"suggestions" validate:"required,min=1,dive"`
	SummaryReasoning string               `json:"summary_reasoning"`
}

// Assignment is the activity chosen for one outdoor space. A nil Activity
// means the model output could not be used; Reasoning then records why.
type Assignment struct {
	SpaceID   string  `json:"id"`
	Activity  *string `json:"activity"`
	Reasoning string  `json:"reasoning,omitempty"`
}
