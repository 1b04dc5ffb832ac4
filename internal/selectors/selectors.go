// Package selectors is the declared contract of which CSS selectors the core
// expects to find on the site. Each target is an ordered fallback chain tried
// front to back; every consumer must tolerate a chain resolving to nothing.
// These break with every site redesign - update here, not in the extractors.
package selectors

// Registry holds per-target selector chains
type Registry struct {
	// Swipe deck
	CardStack   []string
	CardName    []string
	CardAge     []string
	CardPhoto   []string
	CardBullets []string
	LikeButton  []string
	NopeButton  []string

	// Open contact panel
	PanelName       []string
	PanelBio        []string
	PanelPrompts    []string
	PanelEssentials []string
	PanelLookingFor []string
	PanelInterests  []string
	OpenProfile     []string

	// Conversation view
	MatchList    []string
	ChatBubbles  []string
	MessageInput []string
	SendButton   []string
}

// Default returns the selector registry for the current site layout
func Default() *Registry {
	return &Registry{
		CardStack: []string{
			`main [data-keyboard-gamepad="true"]`,
			`div.recsCardboard__cards`,
		},
		CardName: []string{
			`span[itemprop="name"]`,
			`h1 span`,
		},
		CardAge: []string{
			`span[itemprop="age"]`,
		},
		CardPhoto: []string{
			`div[role="img"][style*="background-image"]`,
			`div[style*="background-image"]`,
		},
		CardBullets: []string{
			`button[data-testid="carousel-bullet"]`,
			`.keen-slider__slide`,
		},
		LikeButton: []string{
			`button[aria-label="Like"]`,
			`[data-testid="gamepadLike"]`,
			`button.gamepad-button--like`,
		},
		NopeButton: []string{
			`button[aria-label="Nope"]`,
			`[data-testid="gamepadNope"]`,
		},
		PanelName: []string{
			`h1[aria-label]`,
			`h1 span`,
		},
		PanelBio: []string{
			`[data-testid="profile-about"]`,
			`div.BreakWord`,
		},
		PanelPrompts: []string{
			`[data-testid="profile-prompt"]`,
			`div.prompt`,
		},
		PanelEssentials: []string{
			`[data-testid="profile-essentials"] div`,
			`div.essentials li`,
		},
		PanelLookingFor: []string{
			`[data-testid="profile-looking-for"]`,
			`div.lookingFor`,
		},
		PanelInterests: []string{
			`[data-testid="profile-interest"]`,
			`div.passions span`,
		},
		OpenProfile: []string{
			`button[aria-label="Open profile"]`,
			`[data-testid="openProfile"]`,
		},
		MatchList: []string{
			`a.matchListItem`,
			`[data-testid="matchListItem"]`,
			`div.matchList a`,
		},
		ChatBubbles: []string{
			`div.msg`,
			`[data-testid="chat-bubble"]`,
		},
		MessageInput: []string{
			`textarea[placeholder="Type a message"]`,
			`[data-testid="chat-input"]`,
			`textarea`,
		},
		SendButton: []string{
			`button[type="submit"][aria-label="Send"]`,
			`[data-testid="chat-send"]`,
		},
	}
}
