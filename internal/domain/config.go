package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	m "failpass.dev/pkg/failpass/internal/model"
)

// LLMConfig tunes the generation backends.
type LLMConfig struct {
	Temperature  float32 `validate:"gte=0,lte=2"`
	RPS          float64 `validate:"gte=0"`
	MockResponse string
}

// Config is the resolved configuration of a synthesis batch.
type Config struct {
	Output         string      `validate:"required"`
	Backends       []m.Backend `validate:"min=1,dive,required"`
	Parallel       uint        `validate:"min=1"`
	Engine         string      `validate:"oneof=docker podman"`
	CommandTimeout time.Duration
	Orchestrator   OrchestratorConfig
	Sandbox        SandboxConfig
	LLM            LLMConfig
}

// Validate checks every field constraint and reports them together.
func (c Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
