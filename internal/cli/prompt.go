package cli

import (
	"os"

	"github.com/charmbracelet/huh"
)

// confirmFunc and selectFunc are swapped out in tests
var (
	confirmFunc = huhConfirm
	selectFunc  = huhSelect
)

func accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

func huhConfirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(accessible()).Run()
	return ok, err
}

// Option is one choice in a Select prompt
type Option struct {
	Label string
	Value string
}

func huhSelect(title, description string, options []Option) (string, error) {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o.Label, o.Value)
	}
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Description(description).
				Options(opts...).
				Value(&value),
		),
	).WithAccessible(accessible()).Run()
	return value, err
}

// Confirm asks a yes/no question unless assumeYes is set
func Confirm(assumeYes bool, title, description string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	return confirmFunc(title, description)
}

// Select asks the user to pick one option
func Select(title, description string, options []Option) (string, error) {
	return selectFunc(title, description, options)
}

// SetPrompts replaces the interactive prompts and returns a restore func
func SetPrompts(confirm func(title, description string) (bool, error), sel func(title, description string, options []Option) (string, error)) func() {
	prevConfirm, prevSelect := confirmFunc, selectFunc
	if confirm != nil {
		confirmFunc = confirm
	}
	if sel != nil {
		selectFunc = sel
	}
	return func() {
		confirmFunc, selectFunc = prevConfirm, prevSelect
	}
}
