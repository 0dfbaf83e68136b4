package queryexpand

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary maps a trigger term to its substitutable synonyms, grouped
// by domain category.
type Dictionary map[string]map[string][]string

// DefaultDictionary covers the domains customer-facing assistants see
// most. Deployments can override it with a YAML file via LoadDictionary.
func DefaultDictionary() Dictionary {
	return Dictionary{
		"pricing": {
			"price":        {"cost", "fee", "pricing"},
			"cost":         {"price", "charge", "fee"},
			"subscription": {"plan", "membership", "tier"},
			"discount":     {"coupon", "promo", "deal"},
			"refund":       {"money back", "reimbursement", "return"},
		},
		"technical": {
			"error":     {"bug", "issue", "problem"},
			"install":   {"set up", "configure", "deploy"},
			"integrate": {"connect", "link", "embed"},
			"api":       {"endpoint", "interface", "webhook"},
			"slow":      {"laggy", "performance", "latency"},
		},
		"support": {
			"help":    {"support", "assistance", "guidance"},
			"contact": {"reach", "email", "get in touch with"},
			"cancel":  {"terminate", "end", "stop"},
		},
		"account": {
			"login":    {"sign in", "log in", "authenticate"},
			"password": {"credentials", "passcode", "login details"},
			"account":  {"profile", "user", "membership"},
		},
		"time": {
			"schedule": {"timing", "availability", "hours"},
			"deadline": {"due date", "cutoff", "time limit"},
			"delivery": {"shipping", "arrival", "dispatch"},
		},
		"product": {
			"feature": {"capability", "function", "option"},
			"product": {"item", "service", "offering"},
			"upgrade": {"update", "improve", "switch plan"},
			"trial":   {"demo", "free period", "evaluation"},
		},
		"general": {
			"buy":      {"purchase", "order", "get"},
			"free":     {"complimentary", "no cost", "included"},
			"how long": {"duration", "time needed", "when"},
		},
	}
}

// LoadDictionary reads a synonym dictionary from a YAML file shaped as
// category -> term -> [synonyms].
func LoadDictionary(path string) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}
	var dict Dictionary
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("failed to parse synonyms YAML: %w", err)
	}
	return dict, nil
}

// flatten returns term -> synonyms across all categories with terms
// sorted, so expansion order is deterministic.
func (d Dictionary) flatten() ([]string, map[string][]string) {
	flat := make(map[string][]string)
	for _, terms := range d {
		for term, syns := range terms {
			flat[strings.ToLower(term)] = syns
		}
	}
	keys := make([]string, 0, len(flat))
	for term := range flat {
		keys = append(keys, term)
	}
	sort.Strings(keys)
	return keys, flat
}
