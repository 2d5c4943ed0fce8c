package catalog

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"bookstore-catalog/internal/validator"
)

const maxFieldLen = 50

// IncomingSeller is the payload accepted when registering a seller.
type IncomingSeller struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// UpdatedSeller carries the mutable seller fields. There is deliberately no
// password field: a password in the request body is dropped on decode.
type UpdatedSeller struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ReturnedSeller is the seller-lite representation.
type ReturnedSeller struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ReturnedBookInfo is a book nested under its seller, without the
// back-reference to the seller.
type ReturnedBookInfo struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	Year       int    `json:"year"`
	CountPages int    `json:"count_pages"`
}

// ReturnedSellerBooks is a seller together with every book it owns.
type ReturnedSellerBooks struct {
	ReturnedSeller
	Books []ReturnedBookInfo `json:"books"`
}

type ReturnedAllSellers struct {
	Sellers []ReturnedSeller `json:"sellers"`
}

// ValidationError lists the offending fields of a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func validationErr(v *validator.Validator) error {
	if v.Valid() {
		return nil
	}
	return &ValidationError{Fields: v.Errors}
}

func checkField(v *validator.Validator, value, key string) {
	v.Check(strings.TrimSpace(value) != "", key, "must be provided")
	v.Check(utf8.RuneCountInString(value) <= maxFieldLen, key, fmt.Sprintf("must not be more than %d characters long", maxFieldLen))
}

// Validate reports every problem with the payload at once.
func (in IncomingSeller) Validate() error {
	v := validator.New()
	checkField(v, in.FirstName, "first_name")
	checkField(v, in.LastName, "last_name")
	checkField(v, in.Email, "email")
	checkField(v, in.Password, "password")
	return validationErr(v)
}

func (in UpdatedSeller) Validate() error {
	v := validator.New()
	checkField(v, in.FirstName, "first_name")
	checkField(v, in.LastName, "last_name")
	checkField(v, in.Email, "email")
	return validationErr(v)
}

func toReturnedSeller(s *Seller) ReturnedSeller {
	return ReturnedSeller{ID: s.ID, FirstName: s.FirstName, LastName: s.LastName, Email: s.Email}
}

func toReturnedSellerBooks(s *Seller) ReturnedSellerBooks {
	out := ReturnedSellerBooks{
		ReturnedSeller: toReturnedSeller(s),
		Books:          make([]ReturnedBookInfo, 0, len(s.Books)),
	}
	for _, b := range s.Books {
		out.Books = append(out.Books, ReturnedBookInfo{
			ID:         b.ID,
			Author:     b.Author,
			Title:      b.Title,
			Year:       b.Year,
			CountPages: b.CountPages,
		})
	}
	return out
}
