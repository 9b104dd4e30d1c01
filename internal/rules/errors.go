package rules

import "errors"

// Error kinds for rule evaluation. Every failure returned by this package
// wraps exactly one of the first four, so callers can classify it:
//
//	if errors.Is(err, rules.ErrEvaluation) {
//	    // the rule itself is broken
//	}
var (
	// ErrConversion is returned when a value cannot be represented in the
	// namespace: a structured value reached the leaf converter, or a number
	// is not finite.
	ErrConversion = errors.New("rules: conversion failed")

	// ErrContext is returned when the namespace cannot be built: a path is
	// produced twice, or a variable or function registration is invalid.
	ErrContext = errors.New("rules: invalid context")

	// ErrEvaluation is returned when the expression fails to compile or run,
	// or a built-in is called with the wrong arguments.
	ErrEvaluation = errors.New("rules: evaluation failed")

	// ErrDiffEncoding is returned when a changed path cannot be encoded into
	// the diff tree.
	ErrDiffEncoding = errors.New("rules: diff encoding failed")

	// ErrTypeMismatch is returned, wrapped in ErrEvaluation, when type safety
	// checks are enabled and an assignment changes a variable's kind.
	ErrTypeMismatch = errors.New("rules: type mismatch")
)

// isKind reports whether err already carries one of the core error kinds.
func isKind(err error) bool {
	return errors.Is(err, ErrConversion) ||
		errors.Is(err, ErrContext) ||
		errors.Is(err, ErrEvaluation) ||
		errors.Is(err, ErrDiffEncoding)
}
