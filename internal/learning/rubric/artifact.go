package rubric

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindDescriptive  Kind = "descriptive"
	KindQuantitative Kind = "quantitative"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDescriptive, "":
		return KindDescriptive, true
	case KindQuantitative:
		return KindQuantitative, true
	}
	return "", false
}

type Stream string

const (
	StreamSEL Stream = "SEL"
	StreamAW  Stream = "AW"
)

// NormalizeStream maps anything other than SEL or AW to SEL.
func NormalizeStream(s string) Stream {
	switch Stream(strings.ToUpper(strings.TrimSpace(s))) {
	case StreamAW:
		return StreamAW
	default:
		return StreamSEL
	}
}

// Label is the long name used in prompts.
func (s Stream) Label() string {
	if s == StreamAW {
		return "Academic Wing"
	}
	return "School of English Language"
}

const (
	DomainUnderstanding = "Understanding"
	DomainApplication   = "Application"
	DomainCommunication = "Communication"
	DomainBehavior      = "Behavior"
)

// Domains is the fixed assessment taxonomy in canonical order.
var Domains = [4]string{DomainUnderstanding, DomainApplication, DomainCommunication, DomainBehavior}

func IsDomain(s string) bool {
	for _, d := range Domains {
		if d == s {
			return true
		}
	}
	return false
}

// ---- descriptive ----

// Criterion is one rubric row with a descriptor per score level.
type Criterion struct {
	Domain    string `json:"domain"`
	Criterion string `json:"criterion"`
	Level4    string `json:"4"`
	Level3    string `json:"3"`
	Level2    string `json:"2"`
	Level1    string `json:"1"`
}

type Question struct {
	Domain  string   `json:"domain"`
	Stem    string   `json:"stem"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

type Descriptive struct {
	Lesson    string      `json:"lesson"`
	Stream    string      `json:"stream"`
	Rubric    []Criterion `json:"rubric"`
	Questions []Question  `json:"questions"`
}

// ---- quantitative ----

type DomainOverview struct {
	Domain        string   `json:"domain"`
	Areas         []string `json:"areas"`
	Tasks         int      `json:"tasks"`
	PointsPerTask float64  `json:"points_per_task"`
	DomainMax     float64  `json:"domain_max"`
	Weight        float64  `json:"weight"`
	Description   string   `json:"description"`
}

// TaskItem carries exactly one of Question, Task or Observation.
type TaskItem struct {
	Area        string `json:"area"`
	Question    string `json:"question,omitempty"`
	Task        string `json:"task,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// Text returns whichever prompt the item carries.
func (t TaskItem) Text() string {
	switch {
	case t.Question != "":
		return t.Question
	case t.Task != "":
		return t.Task
	default:
		return t.Observation
	}
}

type Band struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type ScoringSystem struct {
	TotalPoints float64            `json:"total_points"`
	Weights     map[string]float64 `json:"weights"`
	Bands       []Band             `json:"bands"`
}

type Quantitative struct {
	LessonNumber   int                   `json:"lesson_number"`
	LessonTitle    string                `json:"lesson_title"`
	RubricOverview []DomainOverview      `json:"rubric_overview"`
	TaskMatrix     map[string][]TaskItem `json:"task_matrix"`
	ScoringSystem  ScoringSystem         `json:"scoring_system"`
}

// ---- union ----

// Artifact is one of the two schema families. Exactly one variant pointer is
// set and it matches Kind. On the wire an Artifact is the bare variant object.
type Artifact struct {
	Kind         Kind
	Descriptive  *Descriptive
	Quantitative *Quantitative
}

func NewDescriptive(d Descriptive) *Artifact {
	return &Artifact{Kind: KindDescriptive, Descriptive: &d}
}

func NewQuantitative(q Quantitative) *Artifact {
	return &Artifact{Kind: KindQuantitative, Quantitative: &q}
}

// Title is the lesson title carried by either variant.
func (a *Artifact) Title() string {
	switch {
	case a == nil:
		return ""
	case a.Kind == KindQuantitative && a.Quantitative != nil:
		return a.Quantitative.LessonTitle
	case a.Descriptive != nil:
		return a.Descriptive.Lesson
	}
	return ""
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case KindDescriptive:
		if a.Descriptive == nil {
			return nil, fmt.Errorf("rubric: descriptive artifact without body")
		}
		return json.Marshal(a.Descriptive)
	case KindQuantitative:
		if a.Quantitative == nil {
			return nil, fmt.Errorf("rubric: quantitative artifact without body")
		}
		return json.Marshal(a.Quantitative)
	}
	return nil, fmt.Errorf("rubric: unknown artifact kind %q", a.Kind)
}

// UnmarshalJSON picks the variant from the top-level keys.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	kind, err := DetectKind(data)
	if err != nil {
		return err
	}
	parsed, err := decodeAs(kind, data)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

// DetectKind classifies a JSON object by its distinguishing keys.
func DetectKind(data []byte) (Kind, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return "", err
	}
	_, hasOverview := keys["rubric_overview"]
	_, hasRubric := keys["rubric"]
	switch {
	case hasOverview && !hasRubric:
		return KindQuantitative, nil
	case hasRubric && !hasOverview:
		return KindDescriptive, nil
	}
	return "", fmt.Errorf("rubric: object matches neither schema family")
}

func decodeAs(kind Kind, data []byte) (*Artifact, error) {
	switch kind {
	case KindDescriptive:
		var d Descriptive
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return NewDescriptive(d), nil
	case KindQuantitative:
		var q Quantitative
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, err
		}
		return NewQuantitative(q), nil
	}
	return nil, fmt.Errorf("rubric: unknown artifact kind %q", kind)
}
