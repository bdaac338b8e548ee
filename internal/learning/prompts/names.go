package prompts

type PromptName string

const (
	// Generation
	PromptDescriptiveRubric  PromptName = "descriptive_rubric"
	PromptQuantitativeRubric PromptName = "quantitative_rubric"

	// Follow-ups inside one generation conversation
	PromptInvalidJSONFollowup PromptName = "invalid_json_followup"
	PromptRepairFollowup      PromptName = "repair_followup"
)
