package prompts

// RegisterAll registers the built-in prompts. Build calls it once on first use.
func RegisterAll() {
	// ---------- Generation ----------

	RegisterSpec(Spec{
		Name:    PromptDescriptiveRubric,
		Version: 1,
		System: `
You are an expert instructional designer at a bilingual military training academy.
There are only two curriculum streams:

1. SEL (School of English Language): English instruction (comprehension, vocabulary, grammar)
2. AW (Academic Wing): technical or academic English (avionics, maintenance, procedures)

Generate a lesson-specific rubric and comprehension questions that fit the given stream.
Use the universal 4-domain framework:

1. Understanding
2. Application
3. Communication
4. Behavior

Numeric scale (always fixed):
4 = Consistently accurate / independent
3 = Usually accurate / minor help
2 = Partial / needs support
1 = Inaccurate / dependent

Rules:
- Adapt descriptors to SEL or AW context.
- Use measurable, observable language (no "good"/"bad").
- Every question has exactly four options and one answer.
- Output only valid JSON in this format:

{{.ExampleJSON}}`,
		User: `
Stream: {{.Stream}} ({{.StreamLabel}})
Lesson title: {{.LessonTitle}}

Lesson content:
{{.LessonContent}}

Instructions:
1. Create criteria for the four domains (Understanding, Application, Communication, Behavior).
2. Adapt wording to match the stream (SEL = English, AW = Technical).
3. Include one comprehension/performance question for each criterion.
4. Follow the numeric scale and JSON schema exactly.`,
		Validators: []Validator{
			RequireNonEmpty("ExampleJSON", func(in Input) string { return in.ExampleJSON }),
			RequireNonEmpty("LessonContent", func(in Input) string { return in.LessonContent }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptQuantitativeRubric,
		Version: 1,
		System: `
You are an expert instructional designer at a bilingual military training academy.
Streams: SEL (School of English Language) and AW (Academic Wing).

Build a point-based assessment rubric for one lesson across the four domains
Understanding, Application, Communication and Behavior.

Rules:
- rubric_overview lists each of the four domains exactly once.
- domain_max = tasks * points_per_task for every domain.
- The domain_max values add up to scoring_system.total_points.
- The weights add up to exactly 1.0 and match the rubric_overview weights.
- task_matrix items carry a question (Understanding), a task (Application, Communication) or an observation (Behavior).
- bands cover 0..total_points without gaps.
- Output only valid JSON in this format:

{{.ExampleJSON}}`,
		User: `
Stream: {{.Stream}} ({{.StreamLabel}})
Lesson number: {{if .LessonNumber}}{{.LessonNumber}}{{else}}unknown{{end}}
Lesson title: {{.LessonTitle}}

Lesson content:
{{.LessonContent}}

Instructions:
1. Derive assessable areas from the lesson content for every domain.
2. Adapt wording to match the stream (SEL = English, AW = Technical).
3. Check the point and weight totals before answering.`,
		Validators: []Validator{
			RequireNonEmpty("ExampleJSON", func(in Input) string { return in.ExampleJSON }),
			RequireNonEmpty("LessonContent", func(in Input) string { return in.LessonContent }),
		},
	})

	// ---------- Follow-ups ----------

	RegisterSpec(Spec{
		Name:    PromptInvalidJSONFollowup,
		Version: 1,
		User: `
Your previous answer could not be parsed as a JSON object ({{.ParseError}}).
Reissue the same rubric strictly as one JSON object in the required format.
No markdown fences, no commentary.`,
	})

	RegisterSpec(Spec{
		Name:    PromptRepairFollowup,
		Version: 1,
		User: `
Your previous rubric is well formed but its totals are inconsistent:
{{range .Problems}}- {{.}}
{{end}}
Adjust tasks, points_per_task, domain_max, total_points or weights so that
the domain_max values add up to total_points and the weights add up to 1.0.
Return the complete corrected JSON object only.`,
		Validators: []Validator{RequireProblems()},
	})
}
