package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(validateSemanticKey, Config{})

	if err := validate.Struct(c); err != nil {
		return err
	}

	eviction, ok := c.Scheduler.Tasks[TaskCacheEviction]
	if !ok || !eviction.Enabled {
		return fmt.Errorf("scheduler task %q must stay enabled", TaskCacheEviction)
	}

	seen := make(map[string]struct{}, len(c.Offer.Phrases))
	for _, p := range c.Offer.Phrases {
		key := strings.ToLower(strings.TrimSpace(p.Phrase))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate offer phrase %q", p.Phrase)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// validateSemanticKey requires a Gemini API key when the semantic filter is on.
func validateSemanticKey(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Suppression.SemanticFilter && cfg.Gemini.APIKey == "" {
		sl.ReportError(cfg.Gemini.APIKey, "Gemini.APIKey", "APIKey", "required_with_semantic_filter", "")
	}
}

// IsRecipient reports whether userID is the recipient of any group. Only
// recipients may issue the offer command.
func (c *Config) IsRecipient(userID int64) bool {
	for _, g := range c.Groups {
		if g.Recipient == userID {
			return true
		}
	}
	return false
}
