// Package evalcases loads the question set used by evaluation runs.
package evalcases

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

//go:embed cases.yaml
var defaultCases []byte

type file struct {
	Cases []domain.EvaluationCase `yaml:"cases"`
}

// Default returns the built-in case set.
func Default() ([]domain.EvaluationCase, error) {
	return Parse(defaultCases)
}

// Load reads cases from path, or the built-in set when path is empty.
func Load(path string) ([]domain.EvaluationCase, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evaluation cases: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a case document. Cases without a number are
// numbered by position.
func Parse(data []byte) ([]domain.EvaluationCase, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse evaluation cases", err)
	}
	if len(f.Cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse evaluation cases", fmt.Errorf("no cases defined"))
	}

	seen := make(map[int]struct{}, len(f.Cases))
	for i := range f.Cases {
		c := &f.Cases[i]
		if c.Number == 0 {
			c.Number = i + 1
		}
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.ExpectedAnswer) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse evaluation cases",
				fmt.Errorf("case %d needs a question and an expected answer", c.Number))
		}
		if _, dup := seen[c.Number]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse evaluation cases",
				fmt.Errorf("duplicate case number %d", c.Number))
		}
		seen[c.Number] = struct{}{}
	}
	return f.Cases, nil
}
