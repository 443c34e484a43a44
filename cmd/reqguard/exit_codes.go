package main

import (
	"errors"

	"github.com/odvcencio/reqguard/pkg/guard"
)

const (
	exitOK           = 0
	exitError        = 1
	exitUsage        = 2
	exitGuardFailure = 3
)

type exitCoder interface {
	ExitCode() int
}

type exitErr struct {
	code int
	err  error
}

func (e exitErr) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitErr) Unwrap() error {
	return e.err
}

func (e exitErr) ExitCode() int {
	if e.code == 0 {
		return exitError
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitErr{code: code, err: err}
}

func usageError(err error) error {
	return withExitCode(err, exitUsage)
}

// exitCodeForError maps guard failures to their own code so scripts can tell a
// wrong request kind apart from a broken browser.
func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	if guard.IsFailure(err) {
		return exitGuardFailure
	}
	return exitError
}
