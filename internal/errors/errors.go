// Package errors re-exports github.com/cockroachdb/errors so the rest of
// pclgen gets stack traces, hints and markers from one import.
//
// Usage:
//
//	if err := provider.Close(); err != nil {
//	    return errors.Wrap(err, "closing metadata provider")
//	}
//
//	return errors.WithHint(err, "pass --ref-dir with the framework reference assemblies")
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	As            = crdb.As
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
)
