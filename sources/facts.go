package sources

import (
	"context"
	"fmt"
	"strings"
)

// Facts are the static business facts of the studio.
type Facts struct {
	Name     string   `mapstructure:"name"`
	Owner    string   `mapstructure:"owner"`
	City     string   `mapstructure:"city"`
	Region   string   `mapstructure:"region"`
	Phone    string   `mapstructure:"phone"`
	Email    string   `mapstructure:"email"`
	Website  string   `mapstructure:"website"`
	Services []string `mapstructure:"services"`
	Notes    string   `mapstructure:"notes"`
}

// FactsSource renders configured business facts.
type FactsSource struct {
	Facts Facts
}

func (FactsSource) Name() Name { return BusinessFacts }

func (s FactsSource) Fetch(ctx context.Context, q Query) (string, error) {
	f := s.Facts
	var lines []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, v))
		}
	}
	add("Studio", f.Name)
	add("Fotograf/in", f.Owner)
	add("Ort", strings.Trim(strings.Join([]string{f.City, f.Region}, ", "), ", "))
	add("Telefon", f.Phone)
	add("E-Mail", f.Email)
	add("Website", f.Website)
	add("Leistungen", strings.Join(f.Services, ", "))
	add("Hinweise", f.Notes)
	if len(lines) == 0 {
		return "", ErrNotConfigured
	}
	return strings.Join(lines, "\n"), nil
}
