package types

// Book is a single catalog record. Text columns are nullable and stay nil
// when the row holds NULL.
type Book struct {
	Id       int64   `json:"id"`
	Title    *string `json:"title"`
	Authors  *string `json:"authors"`
	Subjects *string `json:"subjects"`
}

const (
	TitleMaxLen    = 255
	AuthorsMaxLen  = 255
	SubjectsMaxLen = 1000
)
