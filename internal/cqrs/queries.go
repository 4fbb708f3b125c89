package cqrs

import (
	"fmt"
	"math"
	"strings"
)

// Paging defaults applied when the caller leaves a field unset.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	DefaultSort     = "id"
)

const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// sortableFields maps the JSON field names a caller may sort by to store columns.
var sortableFields = map[string]string{
	"id":               "id",
	"firstName":        "first_name",
	"lastName":         "last_name",
	"email":            "email",
	"registrationDate": "registration_date",
}

// GetUserQuery fetches a single user by ID.
type GetUserQuery struct {
	UserID string
}

// ListUsersQuery fetches one page of users.
type ListUsersQuery struct {
	Page      int
	Size      int
	SortField string
	SortDir   string
}

// NewListUsersQuery builds a ListUsersQuery from raw request values.
// sort takes the form "field" or "field,asc|desc". Empty values fall back to
// page 0, size 10, sorted by id ascending.
func NewListUsersQuery(page, size int, sort string) (ListUsersQuery, error) {
	q := ListUsersQuery{Page: page, Size: size, SortField: DefaultSort, SortDir: SortAsc}
	if q.Page < 0 {
		return q, fmt.Errorf("page must not be negative")
	}
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Size < 0 || q.Size > MaxPageSize {
		return q, fmt.Errorf("size must be between 1 and %d", MaxPageSize)
	}

	sort = strings.TrimSpace(sort)
	if sort == "" {
		return q, nil
	}
	field, dir, _ := strings.Cut(sort, ",")
	field = strings.TrimSpace(field)
	if _, ok := sortableFields[field]; !ok {
		return q, fmt.Errorf("cannot sort by %q", field)
	}
	q.SortField = field

	switch strings.ToUpper(strings.TrimSpace(dir)) {
	case "", SortAsc:
		q.SortDir = SortAsc
	case SortDesc:
		q.SortDir = SortDesc
	default:
		return q, fmt.Errorf("invalid sort direction %q", dir)
	}
	return q, nil
}

// SortColumn returns the store column for the query's sort field.
func (q ListUsersQuery) SortColumn() string {
	if col, ok := sortableFields[q.SortField]; ok {
		return col
	}
	return sortableFields[DefaultSort]
}

// Offset is the number of rows skipped before the requested page. It
// saturates at math.MaxInt so a page far past the end stays past the end.
func (q ListUsersQuery) Offset() int {
	if q.Page <= 0 || q.Size <= 0 {
		return 0
	}
	if q.Page > math.MaxInt/q.Size {
		return math.MaxInt
	}
	return q.Page * q.Size
}
