package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Rubric describes how a question (or the whole assignment) is scored.
// The four tiers map to no-submission / attempted / mostly-correct / correct.
type Rubric struct {
	Criteria      []string `json:"criteria,omitempty"`
	NoSubmission  float64  `json:"no_submission"`
	Attempted     *float64 `json:"attempted,omitempty"`
	MostlyCorrect *float64 `json:"mostly_correct,omitempty"`
	Correct       *float64 `json:"correct,omitempty"`
	Instructions  string   `json:"instructions,omitempty"`
}

// Question is a single gradable item. Immutable once the assignment is loaded.
type Question struct {
	ID        string  `json:"id" validate:"required"`
	Text      string  `json:"text" validate:"required"`
	Points    float64 `json:"points" validate:"gt=0"`
	AnswerKey string  `json:"answer_key,omitempty"`
	Rubric    *Rubric `json:"rubric,omitempty"`
}

// TestCase is an optional stdin/stdout check used when code execution is enabled.
type TestCase struct {
	Description    string `json:"description,omitempty"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output"`
}

// Assignment is the full grading configuration for one assignment.
// Loaded once per run; read-only during grading.
type Assignment struct {
	ID                  string     `json:"assignment_id" validate:"required"`
	Name                string     `json:"assignment_name" validate:"required"`
	CourseCode          string     `json:"course_code,omitempty"`
	Term                string     `json:"term,omitempty"`
	Questions           []Question `json:"questions" validate:"required,min=1,dive"`
	GeneralRubric       *Rubric    `json:"general_rubric,omitempty"`
	AnswerKeyText       string     `json:"answer_key_text,omitempty"`
	TotalPoints         float64    `json:"total_points,omitempty"`
	GradingInstructions string     `json:"grading_instructions,omitempty"`
	AllowPartialCredit  bool       `json:"allow_partial_credit"`
	SupportedLanguages  []string   `json:"supported_languages,omitempty"`
	TestCases           []TestCase `json:"test_cases,omitempty"`
}

const assignmentSchema = `{
  "type": "object",
  "required": ["assignment_id", "assignment_name", "questions"],
  "properties": {
    "assignment_id": {"type": "string", "minLength": 1},
    "assignment_name": {"type": "string", "minLength": 1},
    "total_points": {"type": "number", "minimum": 0},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "text", "points"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1},
          "points": {"type": "number", "exclusiveMinimum": 0}
        }
      }
    }
  }
}`

var (
	assignmentValidator = validator.New(validator.WithRequiredStructEnabled())
	compiledSchema      = jsonschema.MustCompileString("assignment.schema.json", assignmentSchema)
)

// LoadAssignment reads and validates an assignment configuration from a JSON file.
// Returns an error when the file is missing or the configuration is invalid;
// callers treat that as fatal for the run.
func LoadAssignment(path string) (*Assignment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assignment config: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse assignment config: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid assignment config: %w", err)
	}

	var assignment Assignment
	if err := json.Unmarshal(raw, &assignment); err != nil {
		return nil, fmt.Errorf("decode assignment config: %w", err)
	}

	if err := assignmentValidator.Struct(assignment); err != nil {
		return nil, fmt.Errorf("validate assignment config: %w", err)
	}

	if assignment.TotalPoints == 0 {
		for _, q := range assignment.Questions {
			assignment.TotalPoints += q.Points
		}
	}

	ids := make(map[string]struct{}, len(assignment.Questions))
	for _, q := range assignment.Questions {
		if _, dup := ids[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		ids[q.ID] = struct{}{}
	}

	return &assignment, nil
}

// QuestionByID returns the question with the given identifier, or nil.
func (a *Assignment) QuestionByID(id string) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}

// RubricFor returns the question-specific rubric, falling back to the
// assignment-wide rubric when the question has none.
func (a *Assignment) RubricFor(q Question) *Rubric {
	if q.Rubric != nil {
		return q.Rubric
	}
	return a.GeneralRubric
}

// SupportsLanguage reports whether the assignment accepts submissions in the
// given language. An empty list means any language is accepted.
func (a *Assignment) SupportsLanguage(language string) bool {
	if len(a.SupportedLanguages) == 0 {
		return true
	}
	for _, l := range a.SupportedLanguages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}
