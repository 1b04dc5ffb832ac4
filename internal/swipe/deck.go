package swipe

import (
	"context"
	"fmt"

	"github.com/mprichard/swipebot/internal/decision"
	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/profile"
	"github.com/mprichard/swipebot/internal/selectors"
)

// Deck reads the live page. It is both the profile source and the button
// finder for a session.
type Deck struct {
	src dom.Snapshotter
	reg *selectors.Registry
}

// NewDeck wires a deck over a snapshot source
func NewDeck(src dom.Snapshotter, reg *selectors.Registry) *Deck {
	return &Deck{src: src, reg: reg}
}

// Current extracts the top card into a decision view. A card with neither a
// name nor a photo is treated as absent.
func (d *Deck) Current(ctx context.Context) (decision.ProfileView, error) {
	doc, err := d.src.Snapshot(ctx)
	if err != nil {
		return decision.ProfileView{}, err
	}

	p := profile.ExtractCard(doc, d.reg)
	if p.Name == "" && p.Photo == "" {
		return decision.ProfileView{}, fmt.Errorf("no card on deck")
	}
	return decision.ProfileView{Bio: p.Bio, PhotoCount: p.PhotoCount}, nil
}

// Find resolves the button for the outcome to the first live selector in
// its chain
func (d *Deck) Find(ctx context.Context, o decision.Outcome) (string, error) {
	doc, err := d.src.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	chain := d.reg.NopeButton
	if o == decision.Like {
		chain = d.reg.LikeButton
	}
	for _, sel := range chain {
		if doc.Find(sel).Length() > 0 {
			return sel, nil
		}
	}
	return "", fmt.Errorf("%s button not present", o)
}
