package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"food-router/internal/domain"
)

const (
	apologyText = "Sorry, I couldn't reach our restaurant or rider services right now. " +
		"Please try again in a moment."
	clarificationText = "I can help with restaurant menus, prices and kitchen prep times, " +
		"and delivery ETAs. Try something like \"what's on the menu at Spice Hub and how long to deliver?\""
	// maxMenuItems caps how many dishes are listed in one answer.
	maxMenuItems = 8
)

// Aggregator turns resolved outcomes into one CompositeAnswer.
// Combine is pure: equal inputs in any order give equal answers.
type Aggregator struct{}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator { return &Aggregator{} }

// Clarification is the answer for an utterance with no recognised intent.
func (a *Aggregator) Clarification() domain.CompositeAnswer {
	return domain.CompositeAnswer{Text: clarificationText, Clarification: true}
}

// Combine renders outcomes ordered menu, then prep time, then ETA.
func (a *Aggregator) Combine(outcomes []domain.TaskOutcome) domain.CompositeAnswer {
	if len(outcomes) == 0 {
		return a.Clarification()
	}

	sorted := make([]domain.TaskOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Task.Kind().Rank(), sorted[j].Task.Kind().Rank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Task.ID < sorted[j].Task.ID
	})

	failed := 0
	for _, o := range sorted {
		if !o.Result.OK() {
			failed++
		}
	}
	if failed == len(sorted) {
		return domain.CompositeAnswer{Text: apologyText, Outcomes: sorted, FullyDegraded: true}
	}

	var (
		parts []string
		prep  *domain.PrepTimePayload
		eta   *domain.EtaPayload
	)
	for _, o := range sorted {
		if !o.Result.OK() {
			parts = append(parts, failureNote(o))
			continue
		}
		switch o.Task.Kind() {
		case domain.KindMenu:
			var p domain.MenuPayload
			if err := o.Result.Decode(&p); err != nil {
				parts = append(parts, unreadableNote(o))
				continue
			}
			parts = append(parts, renderMenu(p))
		case domain.KindPrepTime:
			var p domain.PrepTimePayload
			if err := o.Result.Decode(&p); err != nil {
				parts = append(parts, unreadableNote(o))
				continue
			}
			prep = &p
			parts = append(parts, renderPrep(p))
		case domain.KindETA:
			var p domain.EtaPayload
			if err := o.Result.Decode(&p); err != nil {
				parts = append(parts, unreadableNote(o))
				continue
			}
			eta = &p
			parts = append(parts, renderETA(p))
		}
	}
	if prep != nil && eta != nil {
		total := float64(prep.EstimatedPrepMinutes) + eta.EtaMinutes
		parts = append(parts, fmt.Sprintf("Approximate delivery completion: about %s minutes from now (kitchen prep + ride).",
			formatMinutes(total)))
	}

	return domain.CompositeAnswer{Text: strings.Join(parts, "\n"), Outcomes: sorted}
}

func renderMenu(p domain.MenuPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Menu at %s", p.RestaurantName)
	if p.Address != "" {
		fmt.Fprintf(&b, " (%s)", p.Address)
	}
	if !p.IsOpen {
		b.WriteString(", currently closed")
	}
	b.WriteString(":")

	listed := 0
	for _, it := range p.Items {
		if !it.IsAvailable {
			continue
		}
		if listed == maxMenuItems {
			fmt.Fprintf(&b, "\n  ...and %d more", countAvailable(p.Items)-listed)
			break
		}
		fmt.Fprintf(&b, "\n  - %s: ₹%s", it.Name, formatINR(it.PriceINR))
		listed++
	}
	if listed == 0 {
		b.WriteString(" no dishes are available right now.")
	}
	return b.String()
}

func countAvailable(items []domain.MenuItem) int {
	n := 0
	for _, it := range items {
		if it.IsAvailable {
			n++
		}
	}
	return n
}

func renderPrep(p domain.PrepTimePayload) string {
	if len(p.Items) == 0 {
		return fmt.Sprintf("%s usually needs about %d minutes in the kitchen.", p.RestaurantName, p.EstimatedPrepMinutes)
	}
	names := make([]string, len(p.Items))
	for i, it := range p.Items {
		names[i] = it.Name
	}
	return fmt.Sprintf("Total price for %s at %s: ₹%s. Kitchen prep time: about %d minutes.",
		strings.Join(names, ", "), p.RestaurantName, formatINR(p.TotalPriceINR), p.EstimatedPrepMinutes)
}

func renderETA(p domain.EtaPayload) string {
	return fmt.Sprintf("Rider ETA from %s to %s: about %s minutes (%s km).",
		p.Origin, p.Destination, formatMinutes(p.EtaMinutes), formatKM(p.DistanceKM))
}

func failureNote(o domain.TaskOutcome) string {
	f := o.Result.Failure
	service := string(o.Task.Worker) + " service"
	switch f.Kind {
	case domain.FailureTimeout:
		return fmt.Sprintf("I couldn't get %s: the %s timed out.", o.Task.Kind().Label(), service)
	case domain.FailureBusiness:
		return fmt.Sprintf("I couldn't get %s: %s.", o.Task.Kind().Label(), strings.TrimSuffix(f.Reason, "."))
	case domain.FailureDependency:
		return fmt.Sprintf("I couldn't get %s because the restaurant details were unavailable.", o.Task.Kind().Label())
	default:
		return fmt.Sprintf("I couldn't get %s: the %s is unavailable right now.", o.Task.Kind().Label(), service)
	}
}

func unreadableNote(o domain.TaskOutcome) string {
	return fmt.Sprintf("I couldn't read %s from the %s service.", o.Task.Kind().Label(), o.Task.Worker)
}

func formatINR(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func formatMinutes(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

func formatKM(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
