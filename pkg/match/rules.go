package match

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rules tune the scoring call and the shape of the prompt. Deployments
// override the defaults with a YAML file; missing fields fall back to the
// compiled-in values.
type Rules struct {
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" json:"max_tokens"`
	MaxFunders   int     `yaml:"max_funders" json:"max_funders"`
	SampleGrants int     `yaml:"sample_grants" json:"sample_grants"`
	PromptGrants int     `yaml:"prompt_grants" json:"prompt_grants"`
	MaxResults   int     `yaml:"max_results" json:"max_results"`
}

func DefaultRules() Rules {
	return Rules{
		Temperature:  0.2,
		MaxTokens:    4096,
		MaxFunders:   50,
		SampleGrants: 10,
		PromptGrants: 5,
		MaxResults:   20,
	}
}

func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return rules, err
	}
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return DefaultRules(), err
	}
	return rules.normalized(), nil
}

func (r Rules) normalized() Rules {
	defaults := DefaultRules()
	if r.Temperature <= 0 {
		r.Temperature = defaults.Temperature
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaults.MaxTokens
	}
	if r.MaxFunders <= 0 {
		r.MaxFunders = defaults.MaxFunders
	}
	if r.SampleGrants <= 0 {
		r.SampleGrants = defaults.SampleGrants
	}
	if r.PromptGrants <= 0 {
		r.PromptGrants = defaults.PromptGrants
	}
	if r.MaxResults <= 0 {
		r.MaxResults = defaults.MaxResults
	}
	return r
}
