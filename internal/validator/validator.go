package validator

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/dom"
	"github.com/arcanaland/cardwatch/internal/fragment"
	"github.com/arcanaland/cardwatch/internal/render"
)

type ValidationResults struct {
	Errors   []string
	Warnings []string
}

// Validator checks that card fragments carry the slots the renderer fills
type Validator struct {
	Refs    map[card.Status]string
	Client  *http.Client
	Results ValidationResults
}

func NewValidator(refs map[card.Status]string, client *http.Client) *Validator {
	return &Validator{
		Refs:    refs,
		Client:  client,
		Results: ValidationResults{},
	}
}

func (v *Validator) Validate(ctx context.Context) (ValidationResults, error) {
	if len(v.Refs) == 0 {
		return v.Results, fmt.Errorf("no templates configured")
	}

	v.validateStatuses()

	for _, status := range v.sortedStatuses() {
		v.validateFragment(ctx, status, v.Refs[status])
	}

	return v.Results, nil
}

// validateStatuses checks the mapping covers every known status
func (v *Validator) validateStatuses() {
	for _, status := range card.Statuses {
		if _, ok := v.Refs[status]; !ok {
			if status == card.Statuses[0] {
				v.Results.Errors = append(v.Results.Errors,
					fmt.Sprintf("no template for %s, which is the fallback for unknown statuses", status))
			} else {
				v.Results.Warnings = append(v.Results.Warnings,
					fmt.Sprintf("no template for %s, its cards will use the %s template", status, card.Statuses[0]))
			}
		}
	}

	for status := range v.Refs {
		if !status.Known() {
			v.Results.Warnings = append(v.Results.Warnings,
				fmt.Sprintf("template for unknown status %s will never be used", status))
		}
	}
}

// validateFragment fetches one fragment and checks its slots
func (v *Validator) validateFragment(ctx context.Context, status card.Status, ref string) {
	raw, err := fragment.Fetch(ctx, v.Client, ref)
	if err != nil {
		v.Results.Errors = append(v.Results.Errors,
			fmt.Sprintf("%s: error fetching %s: %v", status, ref, err))
		return
	}

	tmpl, err := fragment.Parse(raw)
	if err != nil {
		v.Results.Errors = append(v.Results.Errors,
			fmt.Sprintf("%s: %s: %v", status, ref, err))
		return
	}
	content := tmpl.Clone()

	// Check for the flip root
	if dom.Query(content, render.ClassCard) == nil {
		v.Results.Warnings = append(v.Results.Warnings,
			fmt.Sprintf("%s: no .%s element, cards will not flip", status, render.ClassCard))
	}

	// The first status lays coins out as a table
	if status == card.Statuses[0] && dom.Query(content, render.ClassCoinStats) == nil {
		v.Results.Errors = append(v.Results.Errors,
			fmt.Sprintf("%s: missing .%s element for the coin table", status, render.ClassCoinStats))
	}

	// Check every field slot
	missing := []string{}
	for _, class := range render.SlotClasses() {
		if class == render.ClassCoins && status == card.Statuses[0] {
			continue
		}
		if dom.Query(content, class) == nil {
			missing = append(missing, "."+class)
		}
	}

	if len(missing) > 0 {
		v.Results.Warnings = append(v.Results.Warnings,
			fmt.Sprintf("%s: slots not present in template: %v", status, missing))
	}
}

func (v *Validator) sortedStatuses() []card.Status {
	statuses := make([]card.Status, 0, len(v.Refs))
	for status := range v.Refs {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	return statuses
}
