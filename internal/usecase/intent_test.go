package usecase

import (
	"reflect"
	"testing"

	"food-router/internal/domain"
)

func testParser() *IntentParser {
	return NewIntentParser([]string{"Spice Hub", "Pizza Planet", "Joe's Pizza", "Spicy Garden 36"}, "Koramangala, Bengaluru")
}

func describe(tasks []domain.SubTask) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Describe()
	}
	return out
}

func TestParseIntents(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "menu only",
			text: "What's on the menu at Spice Hub?",
			want: []string{"t1:menu_query->restaurant"},
		},
		{
			name: "menu and delivery",
			text: "Show me the menu at Joe's Pizza and how long to deliver",
			want: []string{"t1:menu_query->restaurant", "t2:eta_query->rider after t1"},
		},
		{
			name: "price and delivery",
			text: "How much is a Margherita from Pizza Planet, and when will it arrive?",
			want: []string{"t1:prep_time_query->restaurant", "t2:eta_query->rider after t1"},
		},
		{
			name: "bare delivery gets a baseline prep lookup",
			text: "How long to deliver from Spicy Garden 36?",
			want: []string{"t1:prep_time_query->restaurant", "t2:eta_query->rider after t1"},
		},
		{
			name: "unknown venue by phrase",
			text: "menu at Taco Town please",
			want: []string{"t1:menu_query->restaurant"},
		},
		{
			name: "no restaurant known",
			text: "how long does delivery take?",
			want: []string{},
		},
		{
			name: "unrelated",
			text: "tell me about the weather details",
			want: []string{},
		},
	}
	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describe(p.Parse(tt.text, domain.SessionContext{}))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseRestaurantNames(t *testing.T) {
	p := testParser()
	tasks := p.Parse("menu at joes pizza", domain.SessionContext{})
	if len(tasks) != 1 {
		t.Fatalf("tasks = %v", describe(tasks))
	}
	if got := tasks[0].Query.(domain.MenuQuery).Restaurant; got != "Joe's Pizza" {
		t.Errorf("restaurant = %q, want canonical name", got)
	}

	tasks = p.Parse("menu at Taco Town, please", domain.SessionContext{})
	if got := tasks[0].Query.(domain.MenuQuery).Restaurant; got != "Taco Town" {
		t.Errorf("restaurant = %q, want Taco Town", got)
	}
}

func TestParseExtractsItems(t *testing.T) {
	p := testParser()
	tasks := p.Parse("What's the price of Butter Naan and Paneer Tikka at Spice Hub?", domain.SessionContext{})
	if len(tasks) != 1 {
		t.Fatalf("tasks = %v", describe(tasks))
	}
	q := tasks[0].Query.(domain.PrepTimeQuery)
	if !reflect.DeepEqual(q.Items, []string{"Butter Naan", "Paneer Tikka"}) {
		t.Errorf("items = %v", q.Items)
	}
	if q.Restaurant != "Spice Hub" {
		t.Errorf("restaurant = %q", q.Restaurant)
	}
}

func TestParseUsesSessionContext(t *testing.T) {
	p := testParser()
	sc := domain.SessionContext{
		ActiveRestaurant:  "Pizza Planet",
		RestaurantAddress: "Indiranagar, Bengaluru",
		MenuItems:         []string{"Margherita", "Farmhouse", "Garlic Bread"},
		DeliveryAddress:   "HSR Layout",
	}

	t.Run("items matched against menu", func(t *testing.T) {
		tasks := p.Parse("how much for the farmhouse and garlic bread?", sc)
		if len(tasks) != 1 {
			t.Fatalf("tasks = %v", describe(tasks))
		}
		q := tasks[0].Query.(domain.PrepTimeQuery)
		if q.Restaurant != "Pizza Planet" || !reflect.DeepEqual(q.Items, []string{"Farmhouse", "Garlic Bread"}) {
			t.Errorf("query = %+v", q)
		}
	})

	t.Run("eta binds known address", func(t *testing.T) {
		tasks := p.Parse("and when will it arrive?", sc)
		if len(tasks) != 1 || tasks[0].DependsOn != "" {
			t.Fatalf("tasks = %v", describe(tasks))
		}
		q := tasks[0].Query.(domain.EtaQuery)
		if q.Origin != "Indiranagar, Bengaluru" || q.Destination != "HSR Layout" {
			t.Errorf("query = %+v", q)
		}
	})

	t.Run("explicit destination wins", func(t *testing.T) {
		tasks := p.Parse("how long to deliver to 7 Park Lane?", sc)
		q := tasks[len(tasks)-1].Query.(domain.EtaQuery)
		if q.Destination != "7 Park Lane" {
			t.Errorf("destination = %q", q.Destination)
		}
	})

	t.Run("other restaurant needs a lookup", func(t *testing.T) {
		tasks := p.Parse("how long to deliver from Spice Hub?", sc)
		got := describe(tasks)
		want := []string{"t1:prep_time_query->restaurant", "t2:eta_query->rider after t1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tasks = %v, want %v", got, want)
		}
	})
}

func TestParseKitchenHowLongIsPrep(t *testing.T) {
	p := testParser()
	got := describe(p.Parse("how long does the kitchen take at Spice Hub?", domain.SessionContext{}))
	want := []string{"t1:prep_time_query->restaurant"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tasks = %v, want %v", got, want)
	}
}
