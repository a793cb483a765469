// Package llm holds model configuration for the two language boundaries,
// interpretation (NLU) and phrasing (NLG), with per-boundary overrides over a
// shared default.
package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/sorrisolabs/agendabot/agent/contract"
	openrouterx "github.com/sorrisolabs/agendabot/pkg/openrouter"
)

// Boundary selects which language task a model serves.
type Boundary string

const (
	BoundaryNLU Boundary = "nlu"
	BoundaryNLG Boundary = "nlg"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	NLUModel       string  `envconfig:"NLU_MODEL" split_words:"true"`
	NLGModel       string  `envconfig:"NLG_MODEL" split_words:"true"`
	NLUTemperature float32 `envconfig:"NLU_TEMPERATURE" split_words:"true" default:"-1"`
	NLGTemperature float32 `envconfig:"NLG_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contract.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contract.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the effective model settings for one boundary.
func (c Config) OpenRouterFor(boundary Boundary) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch boundary {
	case BoundaryNLU:
		if v := strings.TrimSpace(c.NLUModel); v != "" {
			modelName = v
		}
		if c.NLUTemperature >= 0 {
			temp = c.NLUTemperature
		}
	case BoundaryNLG:
		if v := strings.TrimSpace(c.NLGModel); v != "" {
			modelName = v
		}
		if c.NLGTemperature >= 0 {
			temp = c.NLGTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
