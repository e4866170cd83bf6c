// AngelaMos | 2026
// entity.go

package catalogue

import (
	"time"
)

type Document struct {
	ID         string    `db:"id"`
	Title      string    `db:"title"`
	Author     *string   `db:"author"`
	Summary    *string   `db:"summary"`
	Status     string    `db:"status"`
	IsPhysical bool      `db:"is_physical"`
	IsDigital  bool      `db:"is_digital"`
	FilePath   *string   `db:"file_path"`
	CoverImage *string   `db:"cover_image"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Physical availability. Status only carries meaning while IsPhysical is
// set; digital availability is tracked per member through loans.
const (
	StatusAvailable = "available"
	StatusBorrowed  = "borrowed"
)

func IsValidStatus(status string) bool {
	return status == StatusAvailable || status == StatusBorrowed
}

func (d *Document) IsBorrowed() bool {
	return d.IsPhysical && d.Status == StatusBorrowed
}

func (d *Document) HasFile() bool {
	return d.IsDigital && d.FilePath != nil && *d.FilePath != ""
}

func (d *Document) Formats() []string {
	formats := make([]string, 0, 2)
	if d.IsPhysical {
		formats = append(formats, "physical")
	}
	if d.IsDigital {
		formats = append(formats, "digital")
	}
	return formats
}
