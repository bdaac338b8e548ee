package rubric

// ExampleDescriptiveJSON is the output format shown to the model for descriptive rubrics.
const ExampleDescriptiveJSON = `{
  "lesson": "Lesson title",
  "stream": "SEL | AW",
  "rubric": [
    { "domain": "Understanding", "criterion": "...", "4": "...", "3": "...", "2": "...", "1": "..." },
    { "domain": "Application", "criterion": "...", "4": "...", "3": "...", "2": "...", "1": "..." },
    { "domain": "Communication", "criterion": "...", "4": "...", "3": "...", "2": "...", "1": "..." },
    { "domain": "Behavior", "criterion": "...", "4": "...", "3": "...", "2": "...", "1": "..." }
  ],
  "questions": [
    { "domain": "Understanding", "stem": "...", "options": ["A","B","C","D"], "answer": "..." },
    { "domain": "Application", "stem": "...", "options": ["A","B","C","D"], "answer": "..." }
  ]
}`

// ExampleQuantitativeJSON is the output format shown to the model for point-based rubrics.
// Its numbers satisfy the invariants: 30+30+20+20 == 100 and the weights sum to 1.
const ExampleQuantitativeJSON = `{
  "lesson_number": 1,
  "lesson_title": "Lesson title",
  "rubric_overview": [
    { "domain": "Understanding", "areas": ["..."], "tasks": 3, "points_per_task": 10, "domain_max": 30, "weight": 0.3, "description": "..." },
    { "domain": "Application", "areas": ["..."], "tasks": 3, "points_per_task": 10, "domain_max": 30, "weight": 0.3, "description": "..." },
    { "domain": "Communication", "areas": ["..."], "tasks": 2, "points_per_task": 10, "domain_max": 20, "weight": 0.2, "description": "..." },
    { "domain": "Behavior", "areas": ["..."], "tasks": 2, "points_per_task": 10, "domain_max": 20, "weight": 0.2, "description": "..." }
  ],
  "task_matrix": {
    "Understanding": [ { "area": "...", "question": "..." } ],
    "Application": [ { "area": "...", "task": "..." } ],
    "Communication": [ { "area": "...", "task": "..." } ],
    "Behavior": [ { "area": "...", "observation": "..." } ]
  },
  "scoring_system": {
    "total_points": 100,
    "weights": { "Understanding": 0.3, "Application": 0.3, "Communication": 0.2, "Behavior": 0.2 },
    "bands": [
      { "label": "Consistently accurate / independent", "min": 85, "max": 100 },
      { "label": "Usually accurate / minor help", "min": 70, "max": 84 },
      { "label": "Partial / needs support", "min": 50, "max": 69 },
      { "label": "Inaccurate / dependent", "min": 0, "max": 49 }
    ]
  }
}`
