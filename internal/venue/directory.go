package venue

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poddon/concierge/internal/csvtable"
	"github.com/poddon/concierge/pkg/logging"
)

// Branch is one physical location of the venue.
type Branch struct {
	Name string
	Slug string
}

// DefaultBranches are the venue's two bars.
var DefaultBranches = []Branch{
	{Name: "Большой ПОДДОН", Slug: "big"},
	{Name: "Малый ПОДДОН", Slug: "small"},
}

// Info is one row of the venue directory.
type Info struct {
	Slug         string
	Name         string
	Address      string
	Phone        string
	HoursWeekday string
	HoursWeekend string
	MapsURL      string
}

// TodayHours picks the weekday or weekend column for now.
func (i Info) TodayHours(now time.Time) string {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return i.HoursWeekend
	default:
		return i.HoursWeekday
	}
}

// Directory answers branch and contact lookups.
type Directory struct {
	branches []Branch
	venues   []Info
}

// NewDirectory builds a directory over the given rows.
func NewDirectory(branches []Branch, venues []Info) *Directory {
	if len(branches) == 0 {
		branches = DefaultBranches
	}
	return &Directory{branches: branches, venues: venues}
}

// LoadDirectory reads the venues CSV. A missing file gives an empty
// directory and a warning.
func LoadDirectory(path string, logger *logging.Logger) (*Directory, error) {
	if logger == nil {
		logger = logging.Default()
	}
	_, rows, err := csvtable.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("venue: directory file not found", "path", path)
		return NewDirectory(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("venue: load directory: %w", err)
	}
	venues := make([]Info, 0, len(rows))
	for _, row := range rows {
		venues = append(venues, Info{
			Slug:         row["slug"],
			Name:         row["name"],
			Address:      row["address"],
			Phone:        row["phone"],
			HoursWeekday: row["hours_weekday"],
			HoursWeekend: row["hours_weekend"],
			MapsURL:      row["maps_url"],
		})
	}
	return NewDirectory(nil, venues), nil
}

func (d *Directory) Branches() []Branch {
	return d.branches
}

// BranchName resolves a slug to its display name, or the slug itself.
func (d *Directory) BranchName(slug string) string {
	for _, b := range d.branches {
		if b.Slug == slug {
			return b.Name
		}
	}
	return slug
}

// Empty reports whether no venue rows were loaded.
func (d *Directory) Empty() bool {
	return len(d.venues) == 0
}

// Find looks a branch up by slug, then by its name without the venue
// brand, then falls back to the first row.
func (d *Directory) Find(slug string) (Info, bool) {
	if len(d.venues) == 0 {
		return Info{}, false
	}
	for _, v := range d.venues {
		if strings.EqualFold(v.Slug, slug) {
			return v, true
		}
	}
	hint := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(d.BranchName(slug)), "поддон", ""))
	for _, v := range d.venues {
		if strings.Contains(strings.ToLower(v.Name), hint) {
			return v, true
		}
	}
	return d.venues[0], true
}
