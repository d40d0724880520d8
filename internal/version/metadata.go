// Package version models the logical document identity (Version) and its
// structured Metadata, plus the total order used for "best version"
// selection among versions sharing a work id.
package version

import "time"

// Author identifies a credited author, optionally under a pseudonym. The
// compact JSON keys (u, p) match the cache schema's space-efficient
// encoding.
type Author struct {
	Username  string `json:"u"`
	Pseudonym string `json:"p,omitempty"`
}

// Fandom is a transparent string in both the domain model and its JSON
// encoding.
type Fandom string

// SeriesPosition records a work's position within a series.
type SeriesPosition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Pos  int    `json:"pos"`
}

// TagKind distinguishes the three tag categories the extractor surfaces.
type TagKind string

const (
	// TagKindRelationship is a relationship tag ("R").
	TagKindRelationship TagKind = "R"
	// TagKindCharacter is a character tag ("C").
	TagKindCharacter TagKind = "C"
	// TagKindFreeform is a freeform/additional tag ("F").
	TagKindFreeform TagKind = "F"
)

// Tag is a single work tag with its kind.
type Tag struct {
	Name string  `json:"n"`
	Kind TagKind `json:"k"`
}

// Warning is one of the fixed set of content-warning labels.
type Warning string

const (
	WarningChoseNotToWarn     Warning = "CHOSE_NOT_TO_WARN"
	WarningGraphicViolence    Warning = "GRAPHIC_VIOLENCE"
	WarningMajorCharacterDeath Warning = "MAJOR_CHARACTER_DEATH"
	WarningRapeNoncon         Warning = "RAPE_NONCON"
	WarningUnderage           Warning = "UNDERAGE"
	WarningNone               Warning = "NO_WARNINGS"
)

// Rating is the work's content rating.
type Rating string

const (
	RatingGeneral  Rating = "general"
	RatingTeen     Rating = "teen"
	RatingMature   Rating = "mature"
	RatingExplicit Rating = "explicit"
	RatingNotRated Rating = "not_rated"
)

// Chapters records a work's chapter progress. Total is nil for works whose
// total chapter count is not yet known (works in progress with an
// unannounced length).
type Chapters struct {
	Written int
	Total   *int
}

// Metadata is the structured document record produced by the external
// extractor from a work's HTML.
type Metadata struct {
	WorkID        string
	Title         string
	Authors       []Author
	Fandoms       []Fandom
	Series        []SeriesPosition
	Chapters      Chapters
	Words         int
	Rating        Rating
	Warnings      []Warning
	Tags          []Tag
	Language      string
	Summary       string
	Published     time.Time
	LastModified  time.Time
}
