package cli

import (
	"errors"

	"github.com/MakeNowJust/heredoc"
)

var (
	ErrProbeFailed = errors.New("probe failed")

	ErrConfigExists = errors.New(heredoc.Doc(`
		Config file already exists.

		Pass --force to overwrite it, or --path to write somewhere else.
	`))
)
