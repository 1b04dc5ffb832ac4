// Package profile extracts structured profile records from page snapshots.
// Records are built fresh on every extraction and never cached - the card
// stack can advance the instant after a snapshot is taken.
package profile

// Prompt is one answered profile prompt
type Prompt struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Profile is a best-effort snapshot of the visible profile. Missing fields
// are empty strings/slices, never nil maps, so prompt construction downstream
// can consume any record without nil checks.
type Profile struct {
	Name       string            `json:"name"`
	Age        int               `json:"age"` // 0 when not derivable
	Bio        string            `json:"bio"`
	Photo      string            `json:"photo"`
	PhotoCount int               `json:"photo_count"`
	Interests  []string          `json:"interests"`
	Prompts    []Prompt          `json:"prompts"`
	Essentials map[string]string `json:"essentials"`
	Job        string            `json:"job"`
	Education  string            `json:"education"`
	Location   string            `json:"location"`
	LookingFor string            `json:"looking_for"`
}

// empty returns a record with all collection fields initialized
func empty() *Profile {
	return &Profile{
		Interests:  []string{},
		Prompts:    []Prompt{},
		Essentials: map[string]string{},
	}
}
