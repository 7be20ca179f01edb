package extraction

import (
	"regexp"
	"strings"
)

var (
	leadingQuestionNumber = regexp.MustCompile(`(?i)^\s*(?:(?:question|problem|prob|q)\s*#?\s*\d+[a-z]?\s*[.):-]?|\(\d+[a-z]?\)|\d+[a-z]?[.):])(?:\s+|$)`)
	pointsAnnotation      = regexp.MustCompile(`(?i)\s*[\(\[]\s*\d+(?:\.\d+)?\s*(?:points?|pts?\.?|marks?)\s*[\)\]]\s*`)
	leadingChoiceLabel    = regexp.MustCompile(`^\s*\(?([A-Za-z])[.)]\s+`)

	fracSplit     = regexp.MustCompile(`\\frac\s*\{([^{}]*)\}\s+\{`)
	supSplit      = regexp.MustCompile(`\^\s+(\{|\w)`)
	subSplit      = regexp.MustCompile(`_\s+\{`)
	sqrtGlyph     = regexp.MustCompile(`√\s*(\{[^{}]*\}|\([^()]*\)|[A-Za-z0-9]+)`)
	integralGlyph = regexp.MustCompile(`[∫ʃ]\s*`)

	inlineParens   = regexp.MustCompile(`(?s)\\\((.+?)\\\)`)
	displayBracket = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	displayEnv     = regexp.MustCompile(`(?s)\\begin\{(?:equation|align|displaymath|gather)\*?\}(.+?)\\end\{(?:equation|align|displaymath|gather)\*?\}`)
	inlineEnv      = regexp.MustCompile(`(?s)\\begin\{math\}(.+?)\\end\{math\}`)
	ensureMath     = regexp.MustCompile(`\\ensuremath\s*\{((?:[^{}]|\{[^{}]*\})*)\}`)

	spaceRun = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizePrompt cleans an extracted question prompt: it removes leading
// question numbers and point annotations, repairs OCR artifacts and
// rewrites math so only $...$ and $$...$$ delimiters remain.
func NormalizePrompt(s string) string {
	s = stripQuestionPrefix(s)
	s = pointsAnnotation.ReplaceAllString(s, " ")
	s = NormalizeMath(s)
	return collapse(s)
}

// NormalizeChoice cleans choice text, dropping a repeated label prefix.
func NormalizeChoice(label, text string) string {
	if m := leadingChoiceLabel.FindStringSubmatch(text); m != nil && strings.EqualFold(m[1], label) {
		text = text[len(m[0]):]
	}
	return collapse(NormalizeMath(text))
}

// NormalizeMath repairs OCR artifacts and unifies math delimiters.
func NormalizeMath(s string) string {
	s = repairOCR(s)
	s = rewrap(displayEnv, s, "$$")
	s = rewrap(displayBracket, s, "$$")
	s = rewrap(inlineParens, s, "$")
	s = rewrap(inlineEnv, s, "$")
	s = rewrap(ensureMath, s, "$")
	return s
}

// stripQuestionPrefix removes one leading question number. Point
// annotations may sit on either side of it.
func stripQuestionPrefix(s string) string {
	s = stripLeadingPoints(s)
	s = leadingQuestionNumber.ReplaceAllString(s, "")
	return stripLeadingPoints(s)
}

func stripLeadingPoints(s string) string {
	for {
		loc := pointsAnnotation.FindStringIndex(s)
		if loc == nil || loc[0] != 0 {
			return s
		}
		s = s[loc[1]:]
	}
}

func repairOCR(s string) string {
	s = fracSplit.ReplaceAllString(s, `\frac{$1}{`)
	s = supSplit.ReplaceAllString(s, `^$1`)
	s = subSplit.ReplaceAllString(s, `_{`)
	s = sqrtGlyph.ReplaceAllStringFunc(s, func(m string) string {
		arg := strings.TrimSpace(strings.TrimPrefix(m, "√"))
		if strings.HasPrefix(arg, "{") || strings.HasPrefix(arg, "(") {
			arg = arg[1 : len(arg)-1]
		}
		return `\sqrt{` + arg + `}`
	})
	s = integralGlyph.ReplaceAllString(s, `\int `)
	return s
}

func rewrap(re *regexp.Regexp, s, delim string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		inner := re.FindStringSubmatch(m)[1]
		return delim + strings.TrimSpace(inner) + delim
	})
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
