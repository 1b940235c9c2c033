package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/macropower/skan/pkg/policy"
)

// TrustPrompter asks the user about project trust on the terminal.
type TrustPrompter struct{}

// NewTrustPrompter creates a new [TrustPrompter].
func NewTrustPrompter() *TrustPrompter {
	return &TrustPrompter{}
}

// Prompt displays a CLI prompt asking the user about project trust.
func (p *TrustPrompter) Prompt(projectDir, configPath string) (policy.TrustDecision, error) {
	ctx := context.Background()

	// Check if we're running interactively.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return policy.TrustDecisionSkip, policy.ErrNotInteractive
	}

	var decision string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Project Configuration Found").
				Description(fmt.Sprintf(
					"A project configuration was found at:\n%s\n\n"+
						"Project directory:\n%s\n\n"+
						"This project wants to define custom scan rules and profiles.\n"+
						"Do you trust this project?",
					configPath,
					projectDir,
				)),

			huh.NewSelect[string]().
				Options(
					huh.NewOption("Trust (add to trusted projects)", "trust"),
					huh.NewOption("Skip (use global config only)", "skip"),
				).
				Value(&decision),
		),
	).
		WithShowHelp(false)

	err := form.RunWithContext(ctx)
	if err != nil {
		return policy.TrustDecisionSkip, fmt.Errorf("run trust prompt: %w", err)
	}

	if decision == "trust" {
		return policy.TrustDecisionAllow, nil
	}

	return policy.TrustDecisionSkip, nil
}
