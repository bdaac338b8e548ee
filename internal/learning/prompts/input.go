package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Lesson
	Stream        string
	StreamLabel   string
	LessonTitle   string
	LessonNumber  int
	LessonContent string
	// Output format example for the requested artifact kind
	ExampleJSON string
	// Follow-ups
	ParseError string
	Problems   []string
}
