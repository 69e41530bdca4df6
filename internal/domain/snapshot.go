package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// SnapshotSchemaVersion is bumped whenever the snapshot layout changes, so
// downstream consumers can detect and handle older formats.
const SnapshotSchemaVersion = 1

// Snapshot is the frozen, self-contained copy of a manual and its chapter
// tree embedded in a revision. It carries values only, never identifiers
// that require a live join to resolve.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	TakenAt       time.Time         `json:"taken_at"`
	Manual        SnapshotManual    `json:"manual"`
	Chapters      []SnapshotChapter `json:"chapters"`
}

type SnapshotManual struct {
	Title           string     `json:"title"`
	Organization    string     `json:"organization"`
	Status          Status     `json:"status"`
	CurrentRevision string     `json:"current_revision"`
	EffectiveDate   *time.Time `json:"effective_date"`
}

type SnapshotChapter struct {
	Label        string  `json:"label"`
	Depth        int     `json:"depth"`
	Title        string  `json:"title"`
	Content      *string `json:"content"`
	DisplayOrder int     `json:"display_order"`
}

// BuildSnapshot materializes the manual and its chapters into the versioned
// snapshot document. Chapters are ordered by coordinate tuple, then display
// order, so the output is deterministic for a fixed database state and
// timestamp.
func BuildSnapshot(m *Manual, chapters []Chapter, at time.Time) ([]byte, error) {
	ordered := make([]Chapter, len(chapters))
	copy(ordered, chapters)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]
		if c := compareCoords(a, b); c != 0 {
			return c < 0
		}
		return a.DisplayOrder < b.DisplayOrder
	})

	snap := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		TakenAt:       at.UTC(),
		Manual: SnapshotManual{
			Title:           m.Title,
			Organization:    m.Organization,
			Status:          m.Status,
			CurrentRevision: m.CurrentRevision,
			EffectiveDate:   m.EffectiveDate,
		},
		Chapters: make([]SnapshotChapter, 0, len(ordered)),
	}
	for i := range ordered {
		c := &ordered[i]
		snap.Chapters = append(snap.Chapters, SnapshotChapter{
			Label:        c.Label(),
			Depth:        c.Depth,
			Title:        c.Title,
			Content:      c.Content,
			DisplayOrder: c.DisplayOrder,
		})
	}
	return json.Marshal(snap)
}

// SnapshotWithAffected builds the snapshot document together with the
// affected-chapter list relative to prevSnapshot. A nil prevSnapshot marks
// every chapter affected.
func SnapshotWithAffected(m *Manual, chapters []Chapter, prevSnapshot []byte, at time.Time) (snapshot, affected []byte, err error) {
	snapshot, err = BuildSnapshot(m, chapters, at)
	if err != nil {
		return nil, nil, err
	}
	labels, err := ChangedChapterLabels(prevSnapshot, snapshot)
	if err != nil {
		return nil, nil, err
	}
	affected, err = json.Marshal(labels)
	if err != nil {
		return nil, nil, err
	}
	return snapshot, affected, nil
}

// DecodeSnapshot parses a stored snapshot document.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ChangedChapterLabels compares two snapshot documents and returns the
// coordinate labels of chapters that were added, removed, or changed between
// them. A nil previous snapshot marks every chapter as affected.
func ChangedChapterLabels(prev, curr []byte) ([]string, error) {
	currSnap, err := DecodeSnapshot(curr)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		labels := make([]string, 0, len(currSnap.Chapters))
		for _, c := range currSnap.Chapters {
			labels = append(labels, c.Label)
		}
		return labels, nil
	}
	prevSnap, err := DecodeSnapshot(prev)
	if err != nil {
		return nil, err
	}

	prevByLabel := make(map[string]SnapshotChapter, len(prevSnap.Chapters))
	for _, c := range prevSnap.Chapters {
		prevByLabel[c.Label] = c
	}

	changed := make([]string, 0)
	seen := make(map[string]bool, len(currSnap.Chapters))
	for _, c := range currSnap.Chapters {
		seen[c.Label] = true
		old, ok := prevByLabel[c.Label]
		if !ok || !equalChapter(old, c) {
			changed = append(changed, c.Label)
		}
	}
	for _, c := range prevSnap.Chapters {
		if !seen[c.Label] {
			changed = append(changed, c.Label)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

func equalChapter(a, b SnapshotChapter) bool {
	if a.Depth != b.Depth || a.Title != b.Title || a.DisplayOrder != b.DisplayOrder {
		return false
	}
	switch {
	case a.Content == nil && b.Content == nil:
		return true
	case a.Content == nil || b.Content == nil:
		return false
	}
	return *a.Content == *b.Content
}

func compareCoords(a, b *Chapter) int {
	if a.ChapterNum != b.ChapterNum {
		return a.ChapterNum - b.ChapterNum
	}
	pairs := [][2]*int{
		{a.SectionNum, b.SectionNum},
		{a.SubsectionNum, b.SubsectionNum},
		{a.ClauseNum, b.ClauseNum},
	}
	for _, p := range pairs {
		switch {
		case p[0] == nil && p[1] == nil:
			return 0
		case p[0] == nil:
			return -1
		case p[1] == nil:
			return 1
		case *p[0] != *p[1]:
			return *p[0] - *p[1]
		}
	}
	return 0
}
