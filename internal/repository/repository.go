// Package repository implements the persistence layer on top of PostgreSQL.
package repository

import "errors"

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("record not found")
