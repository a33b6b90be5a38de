package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"food-router/internal/domain"
)

// DispatchTable maps each task kind to the worker that serves it.
var DispatchTable = map[domain.TaskKind]domain.WorkerID{
	domain.KindMenu:     domain.WorkerRestaurant,
	domain.KindPrepTime: domain.WorkerRestaurant,
	domain.KindETA:      domain.WorkerRider,
}

var (
	menuRe     = regexp.MustCompile(`\b(?:menu|what'?s on|what do (?:they|you) have|dishes|what can i order)\b`)
	priceRe    = regexp.MustCompile(`\b(?:price\w*|cost\w*|how much|total|bill)\b`)
	prepRe     = regexp.MustCompile(`\b(?:prep\w*|cook\w*|kitchen|ready)\b`)
	deliveryRe = regexp.MustCompile(`\b(?:deliver\w*|eta|arriv\w*|reach me|get here|rider|how far)\b`)
	howLongRe  = regexp.MustCompile(`\bhow long\b`)

	// "at Joe's Pizza", "from Spice Hub" up to a conjunction or punctuation.
	venueRe = regexp.MustCompile(`(?i)\b(?:at|from)\s+([\p{L}\p{N}'&][\p{L}\p{N}'& ]*?)\s*(?:\s(?:and|to|for|with|please)\b|[?,.!]|$)`)
	// "deliver to 12 Main St", "delivery to Koramangala".
	destinationRe = regexp.MustCompile(`(?i)\bdeliver(?:y|ed)?\s+(?:it\s+)?to\s+([^?!]+?)\s*(?:[?!]|\.\s|\.$|$)`)
	// "order a Margherita and Garlic Bread from ...", "price of Butter Naan at ...".
	itemPhraseRe = regexp.MustCompile(`(?i)\b(?:order|get|price of|cost of)\s+(?:an?\s+|one\s+|some\s+)?([\p{L}][\p{L}\p{N} ,&'-]*?)\s+(?:from|at)\b`)
	itemSplitRe  = regexp.MustCompile(`(?i)\s*(?:,|\band\b)\s*`)
)

// IntentParser turns utterance text into SubTasks with a fixed rule set.
type IntentParser struct {
	restaurants     []string
	defaultDelivery string
}

// NewIntentParser creates a parser that recognises the given restaurant
// names and falls back to defaultDelivery when no address is known.
func NewIntentParser(restaurants []string, defaultDelivery string) *IntentParser {
	names := append([]string(nil), restaurants...)
	// Longest first so "Spicy Garden 36" wins over a shorter prefix.
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return &IntentParser{restaurants: names, defaultDelivery: defaultDelivery}
}

type intents struct {
	menu, prep, eta bool
}

func detectIntents(lower string) intents {
	in := intents{
		menu: menuRe.MatchString(lower),
		prep: priceRe.MatchString(lower) || prepRe.MatchString(lower),
		eta:  deliveryRe.MatchString(lower),
	}
	// A bare "how long" is about delivery unless the kitchen is mentioned.
	if howLongRe.MatchString(lower) && !in.prep {
		in.eta = true
	}
	return in
}

// Parse returns the SubTasks for text. Zero tasks means the intent was not
// recognised. Task IDs are assigned in presentation order.
func (p *IntentParser) Parse(text string, sc domain.SessionContext) []domain.SubTask {
	norm := normalize(text)
	lower := strings.ToLower(norm)
	in := detectIntents(lower)
	if !in.menu && !in.prep && !in.eta {
		return nil
	}

	restaurant := p.findRestaurant(norm, lower)
	sameAsContext := false
	if restaurant == "" {
		restaurant = sc.ActiveRestaurant
	}
	if restaurant != "" && strings.EqualFold(restaurant, sc.ActiveRestaurant) {
		sameAsContext = true
	}

	var tasks []domain.SubTask
	add := func(q domain.Query, dependsOn string) string {
		id := "t" + strconv.Itoa(len(tasks)+1)
		tasks = append(tasks, domain.SubTask{
			ID:        id,
			Worker:    DispatchTable[q.Kind()],
			Query:     q,
			DependsOn: dependsOn,
		})
		return id
	}

	var prerequisite string
	if in.menu && restaurant != "" {
		prerequisite = add(domain.MenuQuery{Restaurant: restaurant}, "")
	}
	if in.prep && restaurant != "" {
		items := matchItems(lower, sc)
		if len(items) == 0 {
			items = extractItems(norm)
		}
		if len(items) == 0 && sameAsContext {
			items = append([]string(nil), sc.ActiveItems...)
		}
		id := add(domain.PrepTimeQuery{Restaurant: restaurant, Items: items}, "")
		if prerequisite == "" {
			prerequisite = id
		}
	}
	if in.eta && restaurant != "" {
		dest := p.findDestination(norm, sc)
		switch {
		case sameAsContext && sc.RestaurantAddress != "" && prerequisite == "":
			add(domain.EtaQuery{Origin: sc.RestaurantAddress, Destination: dest}, "")
		case prerequisite != "":
			add(domain.EtaQuery{Destination: dest}, prerequisite)
		default:
			// The origin comes from the restaurant's record; a baseline prep
			// lookup supplies it and also gives the kitchen time.
			pre := add(domain.PrepTimeQuery{Restaurant: restaurant}, "")
			add(domain.EtaQuery{Destination: dest}, pre)
		}
	}
	return tasks
}

func (p *IntentParser) findRestaurant(norm, lower string) string {
	for _, name := range p.restaurants {
		ln := strings.ToLower(name)
		if strings.Contains(lower, ln) || strings.Contains(lower, strings.ReplaceAll(ln, "'", "")) {
			return name
		}
	}
	if m := venueRe.FindStringSubmatch(norm); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (p *IntentParser) findDestination(norm string, sc domain.SessionContext) string {
	if m := destinationRe.FindStringSubmatch(norm); m != nil {
		return strings.TrimSpace(m[1])
	}
	if sc.DeliveryAddress != "" {
		return sc.DeliveryAddress
	}
	return p.defaultDelivery
}

func matchItems(lower string, sc domain.SessionContext) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{sc.MenuItems, sc.ActiveItems} {
		for _, it := range list {
			key := strings.ToLower(it)
			if seen[key] || !strings.Contains(lower, key) {
				continue
			}
			seen[key] = true
			out = append(out, it)
		}
	}
	return out
}

func extractItems(norm string) []string {
	m := itemPhraseRe.FindStringSubmatch(norm)
	if m == nil {
		return nil
	}
	var out []string
	for _, part := range itemSplitRe.Split(m[1], -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalize(s string) string {
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
