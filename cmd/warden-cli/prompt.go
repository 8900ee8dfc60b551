package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
)

// promptPassword asks for a password with masked input.
func promptPassword(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("password is required")
			}
			return nil
		},
	}
	pw, err := prompt.Run()
	if err != nil {
		return "", handlePromptError(err)
	}
	return pw, nil
}

// errCancelled reports a prompt the user backed out of.
var errCancelled = errors.New("cancelled")

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		return errCancelled
	}
	return err
}
