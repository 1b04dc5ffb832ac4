package profile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mprichard/swipebot/internal/dom"
	"github.com/mprichard/swipebot/internal/selectors"
)

var bgImageRe = regexp.MustCompile(`background-image\s*:\s*url\(["']?([^"')]+)["']?\)`)

// ariaNameAgeRe matches labels like "Sasha 27" or "Sasha, 27"
var ariaNameAgeRe = regexp.MustCompile(`^(.*?)[,\s]+(\d{2})$`)

// interestClassFragments mark tag elements on the card by class-name substring
var interestClassFragments = []string{"passion", "interest", "Pill", "tag"}

// ExtractCard reads the top card of the swipe deck. Every field is
// best-effort: an absent element yields its zero value and extraction moves
// on to the next field.
func ExtractCard(doc *dom.Document, reg *selectors.Registry) *Profile {
	p := empty()

	card := activeCard(doc, reg)
	if card == nil {
		return p
	}

	// Name and age live in itemprop spans on the card
	if s := firstIn(card, reg.CardName); s != nil {
		p.Name = dom.CleanText(s.First().Text())
	}
	if s := firstIn(card, reg.CardAge); s != nil {
		p.Age = parseAge(s.First().Text())
	}
	if p.Name == "" || p.Age == 0 {
		// Fallback: combined aria-label on the card heading
		card.Find("h1[aria-label]").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			name, age := splitNameAge(h.AttrOr("aria-label", ""))
			if p.Name == "" {
				p.Name = name
			}
			if p.Age == 0 {
				p.Age = age
			}
			return false
		})
	}

	// Photo URL is an inline background-image style
	if s := firstIn(card, reg.CardPhoto); s != nil {
		p.Photo = photoURL(s.First().AttrOr("style", ""))
	}

	// Photo count from the carousel bullets
	if s := firstIn(card, reg.CardBullets); s != nil {
		p.PhotoCount = s.Length()
	} else if p.Photo != "" {
		p.PhotoCount = 1
	}

	// Interest tags are identified by class-name substrings
	card.Find("div, span").Each(func(_ int, s *goquery.Selection) {
		class, ok := s.Attr("class")
		if !ok || !hasInterestClass(class) {
			return
		}
		if tag := dom.CleanText(s.Text()); tag != "" && len(tag) < 40 {
			p.Interests = appendUnique(p.Interests, tag)
		}
	})

	if s := card.Find(`div[itemprop="description"]`); s.Length() > 0 {
		p.Bio = dom.CleanText(s.First().Text())
	}

	return p
}

// ExtractPanel reads an open contact panel (the detailed profile view in a
// chat). Same graceful-degradation rule as ExtractCard.
func ExtractPanel(doc *dom.Document, reg *selectors.Registry) *Profile {
	p := empty()

	// Name/age: aria-label first, nested spans as fallback
	if s := doc.First(reg.PanelName); s != nil {
		h := s.First()
		if label, ok := h.Attr("aria-label"); ok && label != "" {
			p.Name, p.Age = splitNameAge(label)
		}
		if p.Name == "" {
			p.Name = dom.CleanText(h.Text())
			if name, age := splitNameAge(p.Name); age != 0 {
				p.Name, p.Age = name, age
			}
		}
	}

	if s := doc.First(reg.PanelBio); s != nil {
		p.Bio = dom.CleanText(s.First().Text())
	}

	if s := doc.First(reg.PanelPrompts); s != nil {
		s.Each(func(_ int, el *goquery.Selection) {
			q := dom.CleanText(el.Find("h3, h2, .prompt-question").First().Text())
			a := dom.CleanText(el.Find("p, .prompt-answer").First().Text())
			if a == "" {
				a = dom.CleanText(el.Text())
			}
			if a != "" {
				p.Prompts = append(p.Prompts, Prompt{Question: q, Answer: a})
			}
		})
	}

	if s := doc.First(reg.PanelEssentials); s != nil {
		s.Each(func(_ int, el *goquery.Selection) {
			text := dom.CleanText(el.Text())
			if text == "" {
				return
			}
			key := el.AttrOr("data-kind", essentialKind(text))
			p.Essentials[key] = text
		})
	}

	if s := doc.First(reg.PanelLookingFor); s != nil {
		p.LookingFor = dom.CleanText(s.First().Text())
	}

	if s := doc.First(reg.PanelInterests); s != nil {
		s.Each(func(_ int, el *goquery.Selection) {
			if tag := dom.CleanText(el.Text()); tag != "" {
				p.Interests = appendUnique(p.Interests, tag)
			}
		})
	}

	p.Job = p.Essentials["job"]
	p.Education = p.Essentials["education"]
	p.Location = p.Essentials["location"]

	return p
}

// activeCard returns the last card in the stack that is neither inert nor
// aria-hidden, which is the one currently facing the user.
func activeCard(doc *dom.Document, reg *selectors.Registry) *goquery.Selection {
	stack := doc.First(reg.CardStack)
	if stack == nil {
		return nil
	}

	var active *goquery.Selection
	stack.First().Children().Each(func(_ int, card *goquery.Selection) {
		if _, inert := card.Attr("inert"); inert {
			return
		}
		if card.AttrOr("aria-hidden", "") == "true" {
			return
		}
		active = card
	})
	return active
}

// firstIn walks a selector chain scoped to a selection
func firstIn(root *goquery.Selection, chain []string) *goquery.Selection {
	for _, sel := range chain {
		if s := root.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return nil
}

func parseAge(s string) int {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ","))
	age, err := strconv.Atoi(s)
	if err != nil || age < 18 || age > 99 {
		return 0
	}
	return age
}

func splitNameAge(label string) (string, int) {
	label = dom.CleanText(label)
	if m := ariaNameAgeRe.FindStringSubmatch(label); m != nil {
		return strings.TrimRight(strings.TrimSpace(m[1]), ","), parseAge(m[2])
	}
	return label, 0
}

func photoURL(style string) string {
	if m := bgImageRe.FindStringSubmatch(style); m != nil {
		return m[1]
	}
	return ""
}

func hasInterestClass(class string) bool {
	for _, frag := range interestClassFragments {
		if strings.Contains(class, frag) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}

// essentialKind buckets an essentials line by its content
func essentialKind(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, " at ") || strings.Contains(lower, "engineer") ||
		strings.Contains(lower, "teacher") || strings.Contains(lower, "nurse"):
		return "job"
	case strings.Contains(lower, "university") || strings.Contains(lower, "college") ||
		strings.Contains(lower, "school"):
		return "education"
	case strings.Contains(lower, "lives in") || strings.Contains(lower, "km away") ||
		strings.Contains(lower, "miles away"):
		return "location"
	default:
		return text
	}
}
