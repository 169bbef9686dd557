// Package parsers turns untrusted model output into typed values. Nothing
// here panics on bad input and no raw map escapes the package.
package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

// ErrNoJSON is returned when no JSON object can be located in the content.
var ErrNoJSON = errors.New("no json object in content")

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
	escapeSeq  = regexp.MustCompile(`(?s)\\(.)`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("variation", func(fl validator.FieldLevel) bool {
		return model.IsVariationType(fl.Field().String())
	})
	return v
}

// guard applies the size limit and validates utf8.
func guard(component, content string) (string, error) {
	if len(content) > maxContentLen {
		logx.Component(component).Warn().
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		return "", fmt.Errorf("content invalid utf8")
	}
	return strings.TrimSpace(content), nil
}

// ExtractJSON locates the JSON value in content: a fenced ```json block
// wins, otherwise the outermost {...} (or [...] when no object exists).
func ExtractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)
	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		return s[start : end+1], nil
	}
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start >= 0 && end > start {
		return s[start : end+1], nil
	}
	return "", ErrNoJSON
}

// RepairEscapes fixes escape sequences models often emit inside JSON strings.
// A literal "\ n" becomes a newline escape; any escape JSON does not allow
// loses its backslash. Valid pairs such as \\ are left alone.
func RepairEscapes(s string) string {
	s = strings.ReplaceAll(s, `\ n`, `\n`)
	return escapeSeq.ReplaceAllStringFunc(s, func(m string) string {
		switch m[1] {
		case 'b', 'f', 'n', 'r', 't', 'u', '"', '\\', '/':
			return m
		}
		return m[1:]
	})
}

// decodeObject extracts and decodes one JSON object, retrying once with
// escape repair.
func decodeObject(component, content string, out any) error {
	content, err := guard(component, content)
	if err != nil {
		return err
	}
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(RepairEscapes(raw)), out); err != nil {
		return fmt.Errorf("decode %s: %w", component, err)
	}
	return nil
}

// decodeAndValidate decodes content into out and runs struct validation.
func decodeAndValidate(component, content string, out any) error {
	if err := decodeObject(component, content, out); err != nil {
		return err
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("validate %s: %w", component, err)
	}
	return nil
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
