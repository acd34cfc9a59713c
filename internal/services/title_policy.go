package services

import (
	"fmt"
	"strings"
)

// TitlePolicy decides when two report titles describe the same issue by
// mapping a title to its dedup key.
type TitlePolicy interface {
	Key(title string) string
}

type TitlePolicyFunc func(title string) string

func (f TitlePolicyFunc) Key(title string) string { return f(title) }

var (
	// ExactTitle treats titles as equal only when the submitted strings are
	// identical, including whitespace and markup.
	ExactTitle = TitlePolicyFunc(func(title string) string { return title })

	// NormalizedTitle ignores case and runs of whitespace.
	NormalizedTitle = TitlePolicyFunc(func(title string) string {
		return strings.ToLower(strings.Join(strings.Fields(title), " "))
	})
)

// TitlePolicyByName resolves the TITLE_MATCH setting.
func TitlePolicyByName(name string) (TitlePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exact":
		return ExactTitle, nil
	case "normalized":
		return NormalizedTitle, nil
	}
	return nil, fmt.Errorf("unknown title match policy %q", name)
}
