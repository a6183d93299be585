package model

// ContentKind distinguishes tutorials from challenges.
type ContentKind string

const (
	KindTutorial  ContentKind = "tutorial"
	KindChallenge ContentKind = "challenge"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	return k == KindTutorial || k == KindChallenge
}

// ContentItem is the catalog entry for a tutorial or challenge. The lesson
// body itself lives elsewhere; the progress service only needs the reward.
type ContentItem struct {
	ID         string      `json:"id"`
	Kind       ContentKind `json:"kind"`
	Title      string      `json:"title"`
	XP         int         `json:"xp"`
	Difficulty string      `json:"difficulty"`
}
