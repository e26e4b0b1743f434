package promo

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type fileRule struct {
	Code        string     `yaml:"code"`
	Fraction    string     `yaml:"fraction"`
	Description string     `yaml:"description"`
	Condition   string     `yaml:"condition"`
	ValidFrom   *time.Time `yaml:"validFrom"`
	ValidUntil  *time.Time `yaml:"validUntil"`
}

type fileTable struct {
	Promotions []fileRule `yaml:"promotions"`
}

// ParseRules decodes a YAML promotion table.
//
//	promotions:
//	  - code: LUXE10
//	    fraction: "0.10"
//	    condition: "subtotal >= 100.0"
func ParseRules(data []byte) ([]Rule, error) {
	var t fileTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "decode promotions")
	}
	rules := make([]Rule, 0, len(t.Promotions))
	for i, fr := range t.Promotions {
		f, err := decimal.NewFromString(fr.Fraction)
		if err != nil {
			return nil, errors.Wrapf(err, "promotion %d (%s): fraction", i, fr.Code)
		}
		rules = append(rules, Rule{
			Code:        fr.Code,
			Fraction:    f,
			Description: fr.Description,
			Condition:   fr.Condition,
			ValidFrom:   fr.ValidFrom,
			ValidUntil:  fr.ValidUntil,
		})
	}
	return rules, nil
}

// LoadFile reads a YAML promotion table from path.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read promotions file")
	}
	return ParseRules(data)
}
