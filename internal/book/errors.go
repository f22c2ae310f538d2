package book

import "errors"

var (
	// ErrNotFound indicates the referenced book does not exist.
	ErrNotFound = errors.New("book not found")

	// ErrForbidden indicates the caller does not own the book.
	ErrForbidden = errors.New("not the book owner")

	// ErrNotEditable indicates the book is reserved by an active deal and
	// cannot be updated.
	ErrNotEditable = errors.New("book is reserved and cannot be edited")

	// ErrNotDeletable indicates the book is reserved and cannot be deleted.
	ErrNotDeletable = errors.New("book is reserved and cannot be deleted")

	// ErrNotExchanged indicates a relist was attempted on a book that has not
	// been exchanged.
	ErrNotExchanged = errors.New("book has not been exchanged")

	// ErrHasActiveDeal indicates an active deal still references the book.
	ErrHasActiveDeal = errors.New("book has an active deal")

	// ErrTitleRequired indicates a create or update left the title empty.
	ErrTitleRequired = errors.New("title is required")
)
