package models

// Sort describes the ordering applied to a page.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Page is a single slice of a paginated listing.
type Page[T any] struct {
	Content          []T   `json:"content"`
	Number           int   `json:"number"`
	Size             int   `json:"size"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	NumberOfElements int   `json:"numberOfElements"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	Empty            bool  `json:"empty"`
	Sort             Sort  `json:"sort"`
}

// NewPage assembles a Page from one slice of content and the overall total.
func NewPage[T any](content []T, number, size int, total int64, sort Sort) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:          content,
		Number:           number,
		Size:             size,
		TotalElements:    total,
		TotalPages:       totalPages,
		NumberOfElements: len(content),
		First:            number == 0,
		Last:             number >= totalPages-1,
		Empty:            len(content) == 0,
		Sort:             sort,
	}
}
