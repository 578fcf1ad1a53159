/*
 * errors.go, part of gocte.
 * 
 * Copyright 2025 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 * 
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as 
 * published by the Free Software Foundation; either version 2.1 of the 
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General 
 * Public License along with this program.  If not, see 
 * <http://www.gnu.org/licenses/>.
 * 
 * Gocte is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.  
 * 
 */

package cte

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the whole module. Use errors.Is to test for them.
var (
	//ErrConfig marks problems in the user-provided configuration. These stop the run before any stage starts.
	ErrConfig = errors.New("configuration error")
	//ErrPropertyNotImplemented is returned by calculators that can't produce a given property.
	ErrPropertyNotImplemented = errors.New("property not implemented")
	//ErrShape marks arrays with the wrong dimensions.
	ErrShape = errors.New("wrong shape")
)

// Error is the general error type for gocte. It fullfills the error interface and
// can carry the name of the file involved, a "decoration" trail with the functions it went through
// and a flag that tells whether the run can go on.
type Error struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	deco     []string
	critical bool
	err      error
}

// NewError returns a new *Error. The wrapped error can be nil.
func NewError(message, filename string, critical bool, wrapped error, deco ...string) *Error {
	return &Error{message: message, filename: filename, deco: deco, critical: critical, err: wrapped}
}

func (err *Error) Error() string {
	msg := err.message
	if err.err != nil {
		msg = msg + ": " + err.err.Error()
	}
	if err.filename == "" {
		return fmt.Sprintf("gocte error: %s", msg)
	}
	return fmt.Sprintf("gocte file %s error: %s", err.filename, msg)
}

// Unwrap returns the wrapped error, if any
func (err *Error) Unwrap() error { return err.err }

// Decorate adds new information to the error, and returns the current decoration trail.
// An empty string just returns the trail.
func (err *Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

// FileName returns the file associated to the error, or an empty string.
func (err *Error) FileName() string { return err.filename }

// Critical returns true if the error is critical, false otherwise
func (err *Error) Critical() bool { return err.critical }

// ErrDecorate adds the caller's name to the trail of err, if err is an *Error
// (or wraps one). Other errors are returned unchanged. A nil err returns nil.
func ErrDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		e.Decorate(caller)
	}
	return err
}
