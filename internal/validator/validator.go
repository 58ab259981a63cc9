// Package validator collects field errors for submitted modals. Errors are
// keyed by block id so each one is shown under its input.
package validator

import "github.com/slack-go/slack"

type Validator interface {
	// Validate validates the fields of the struct and returns a map of errors.
	// returns nil if no errors are found
	Validate() map[string]string
}

// Errors keeps the first message reported for each block.
type Errors map[string]string

func (e Errors) Add(blockID, msg string) {
	if _, ok := e[blockID]; !ok {
		e[blockID] = msg
	}
}

func (e Errors) Empty() bool { return len(e) == 0 }

// Validate returns the response that keeps the modal open with v's errors,
// or nil when v is valid.
func Validate(v Validator) *slack.ViewSubmissionResponse {
	if errs := v.Validate(); len(errs) > 0 {
		return slack.NewErrorsViewSubmissionResponse(errs)
	}
	return nil
}
