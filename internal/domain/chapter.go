package domain

import (
	"fmt"
	"strings"
	"time"
)

// Chapter depth levels. A node at depth n has coordinates populated for
// levels 0..n and none beyond.
const (
	DepthChapter    = 0
	DepthSection    = 1
	DepthSubsection = 2
	DepthClause     = 3
)

// Chapter is one node of a manual's numbered 4-level tree. The child stores
// ParentID; there is no owning pointer from parent to child. Every manual
// has exactly one depth-0, number-0 chapter that cannot be deleted.
// Sibling uniqueness over the coordinate tuple is enforced by a COALESCE
// unique index installed in internal/db, not a gorm tag: a plain unique
// index over these nullable columns would treat NULLs as distinct and let
// duplicate chapters and sections through.
type Chapter struct {
	ID            uint64    `json:"id"`
	ManualID      uint64    `json:"manual_id" gorm:"index"`
	ParentID      *uint64   `json:"parent_id" gorm:"index"`
	Depth         int       `json:"depth"`
	ChapterNum    int       `json:"chapter_num"`
	SectionNum    *int      `json:"section_num"`
	SubsectionNum *int      `json:"subsection_num"`
	ClauseNum     *int      `json:"clause_num"`
	Title         string    `json:"title"`
	Content       *string   `json:"content" gorm:"type:text"`
	DisplayOrder  int       `json:"display_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Label renders the coordinate tuple as "2.1.3" style dotted numbering.
func (c *Chapter) Label() string {
	parts := []string{fmt.Sprintf("%d", c.ChapterNum)}
	for _, n := range []*int{c.SectionNum, c.SubsectionNum, c.ClauseNum} {
		if n == nil {
			break
		}
		parts = append(parts, fmt.Sprintf("%d", *n))
	}
	return strings.Join(parts, ".")
}

// ValidateCoordinates checks that the populated coordinate fields match the
// declared depth: levels 0..depth set, everything beyond nil.
func (c *Chapter) ValidateCoordinates() error {
	coords := []*int{c.SectionNum, c.SubsectionNum, c.ClauseNum}
	if c.Depth < DepthChapter || c.Depth > DepthClause {
		return fmt.Errorf("invalid chapter depth %d", c.Depth)
	}
	for level, n := range coords {
		switch {
		case level < c.Depth && n == nil:
			return fmt.Errorf("depth %d chapter is missing its level %d coordinate", c.Depth, level+1)
		case level >= c.Depth && n != nil:
			return fmt.Errorf("depth %d chapter must not carry a level %d coordinate", c.Depth, level+1)
		}
	}
	return nil
}
