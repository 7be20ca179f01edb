package extraction

import (
	"sort"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ExamPayload is the structured output for an exam document.
type ExamPayload struct {
	Year      int               `json:"year" validate:"gte=0"`
	Semester  string            `json:"semester"`
	ExamType  string            `json:"exam_type"`
	Questions []QuestionPayload `json:"questions" validate:"required,min=1,dive"`
}

type QuestionPayload struct {
	Number  int             `json:"number" validate:"gte=0"`
	Prompt  string          `json:"prompt" validate:"required"`
	Choices []ChoicePayload `json:"choices" validate:"dive"`
}

type ChoicePayload struct {
	Label string `json:"label" validate:"required,max=4"`
	Text  string `json:"text"`
}

// CalendarPayload is the structured output for a calendar image.
type CalendarPayload struct {
	Entries []CalendarEntryPayload `json:"entries" validate:"required,min=1,dive"`
}

type CalendarEntryPayload struct {
	Week        int    `json:"week" validate:"gte=0,lte=60"`
	Weekday     string `json:"weekday"`
	Date        string `json:"date"`
	Kind        string `json:"kind" validate:"required,oneof=topic exam quiz"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// AnswerKeyPayload is the structured output for an answer key document.
type AnswerKeyPayload struct {
	Answers []AnswerPayload `json:"answers" validate:"required,min=1,dive"`
}

type AnswerPayload struct {
	Number int    `json:"number" validate:"gte=1"`
	Label  string `json:"label" validate:"required,max=4"`
}

func object(props map[string]jsonschema.Definition) jsonschema.Definition {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             required,
		AdditionalProperties: false,
	}
}

func str(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: desc}
}

func integer(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Integer, Description: desc}
}

func array(items jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Array, Items: &items}
}

var ExamSchema = Schema{
	Name:        "exam_extraction",
	Description: "Questions and metadata extracted from a past exam paper",
	Definition: object(map[string]jsonschema.Definition{
		"year":      integer("Four digit exam year, 0 when not printed"),
		"semester":  str("Spring, Summer, Fall or Winter; empty when not printed"),
		"exam_type": str("Midterm number as a digit, or f for the final; empty when unknown"),
		"questions": array(object(map[string]jsonschema.Definition{
			"number": integer("Question number as printed, 0 when unnumbered"),
			"prompt": str("Question text with LaTeX math in $...$ or $$...$$"),
			"choices": array(object(map[string]jsonschema.Definition{
				"label": str("Choice label such as A, B, C"),
				"text":  str("Choice text"),
			})),
		})),
	}),
}

var CalendarSchema = Schema{
	Name:        "calendar_extraction",
	Description: "Rows of a course calendar",
	Definition: object(map[string]jsonschema.Definition{
		"entries": array(object(map[string]jsonschema.Definition{
			"week":        integer("Week number of the term, 0 when not shown"),
			"weekday":     str("Day of week, empty when not shown"),
			"date":        str("Date as YYYY-MM-DD, empty when not shown"),
			"kind":        {Type: jsonschema.String, Enum: []string{"topic", "exam", "quiz"}},
			"title":       str(`Topic title as "<section>: <name>" when a section number is shown`),
			"description": str("Free text notes, empty when none"),
		})),
	}),
}

var AnswerKeySchema = Schema{
	Name:        "answer_key_extraction",
	Description: "Question number to answer label pairs from an answer key",
	Definition: object(map[string]jsonschema.Definition{
		"answers": array(object(map[string]jsonschema.Definition{
			"number": integer("Question number"),
			"label":  str("Correct choice label"),
		})),
	}),
}

const examSystemPrompt = `You extract multiple choice and free response questions from exam papers.
Return ONLY JSON that matches the provided schema. Do not add commentary.
Rules:
- Keep questions in document order and copy the printed question number.
- Do not include the question number or point values in the prompt text.
- Write inline math as $...$ and display math as $$...$$. Never use \( \) or \[ \].
- Copy choices exactly, one entry per labelled option. Leave choices empty for free response questions.
- Read the exam year, semester and exam type from the header when present.`

const calendarSystemPrompt = `You read course calendar images and return one entry per calendar cell.
Return ONLY JSON that matches the provided schema. Do not add commentary.
Rules:
- kind is "exam" for midterms and finals, "quiz" for quizzes, otherwise "topic".
- When a topic shows a section number, write the title as "<section>: <name>", e.g. "13.1: Vectors".
- A topic that spans several days appears once per day with the same title.
- Always fill the week number when the calendar shows it. Dates use YYYY-MM-DD.`

const answerKeySystemPrompt = `You read exam answer keys.
Return ONLY JSON that matches the provided schema: one entry per question with its number and the correct choice label.`
