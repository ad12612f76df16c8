package domain

import (
	"fmt"
	"regexp"
	"strings"

	m "failpass.dev/pkg/failpass/internal/model"
)

var (
	thinkPattern    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	filenamePattern = regexp.MustCompile(`(?s)<Filename>(.*?)</Filename>`)
	importsPattern  = regexp.MustCompile(`(?s)<imports>(.*?)</imports>`)
	rustPattern     = regexp.MustCompile(`(?s)<Rust>(.*?)</Rust>`)
)

// ParseResponse extracts a GeneratedTest from a generator response. A <NO>
// answer yields model.ErrDeclined; missing filename or code tags yield
// model.ErrMalformedResponse.
func ParseResponse(raw string, attempt int) (m.GeneratedTest, error) {
	cleaned := thinkPattern.ReplaceAllString(raw, "")

	if strings.Contains(cleaned, "<NO>") {
		return m.GeneratedTest{}, m.ErrDeclined
	}

	filename := filenamePattern.FindStringSubmatch(cleaned)
	if filename == nil || strings.TrimSpace(filename[1]) == "" {
		return m.GeneratedTest{}, fmt.Errorf("%w: missing <Filename>", m.ErrMalformedResponse)
	}

	code := rustPattern.FindStringSubmatch(cleaned)
	if code == nil || strings.TrimSpace(code[1]) == "" {
		return m.GeneratedTest{}, fmt.Errorf("%w: missing <Rust>", m.ErrMalformedResponse)
	}

	var imports []string

	if match := importsPattern.FindStringSubmatch(cleaned); match != nil {
		for _, line := range strings.Split(match[1], "\n") {
			if line = strings.TrimSpace(line); line != "" {
				imports = append(imports, line)
			}
		}
	}

	target := m.Path(strings.TrimPrefix(strings.TrimSpace(filename[1]), "/"))

	return m.NewGeneratedTest(target, imports, dedent(code[1]), attempt), nil
}
