package restaurant

import "food-router/internal/domain"

type seedRestaurant struct {
	Restaurant
	Items []domain.MenuItem
}

func item(id int64, name, desc string, price float64, prep int) domain.MenuItem {
	return domain.MenuItem{ID: id, Name: name, Description: desc, PriceINR: price, AvgPrepMinutes: prep, IsAvailable: true}
}

// seedCatalogue is the demo data loaded into an empty database.
var seedCatalogue = []seedRestaurant{
	{
		Restaurant: Restaurant{ID: 1, Name: "Spice Hub", Address: "MG Road, Bengaluru", Cuisine: "Indian", AvgPrepMinutes: 25, IsOpen: true},
		Items: []domain.MenuItem{
			item(1, "Paneer Tikka", "Grilled cottage cheese with spices", 280, 18),
			item(2, "Butter Naan", "Soft tandoori naan with butter", 60, 8),
			item(3, "Veg Biryani", "Aromatic rice with veggies and spices", 260, 25),
		},
	},
	{
		Restaurant: Restaurant{ID: 2, Name: "Pizza Planet", Address: "Indiranagar, Bengaluru", Cuisine: "Italian", AvgPrepMinutes: 20, IsOpen: true},
		Items: []domain.MenuItem{
			item(1, "Margherita Pizza", "Classic cheese and tomato pizza", 350, 20),
			item(2, "Farmhouse Pizza", "Loaded with veggies and cheese", 420, 22),
			item(3, "Garlic Bread", "Toasted bread with garlic and herbs", 150, 10),
		},
	},
	{
		Restaurant: Restaurant{ID: 3, Name: "Burger Corner", Address: "Brigade Road, Bengaluru", Cuisine: "Fast Food", AvgPrepMinutes: 18, IsOpen: true},
		Items: []domain.MenuItem{
			item(1, "Veggie Burger", "Crispy patty with fresh veggies", 180, 12),
			item(2, "French Fries", "Crispy golden fries", 120, 8),
			item(3, "Cold Coffee", "Chilled coffee with ice cream", 160, 5),
		},
	},
	{
		Restaurant: Restaurant{ID: 36, Name: "Spicy Garden 36", Address: "Indiranagar, Bengaluru", Cuisine: "Indian", AvgPrepMinutes: 23, IsOpen: true},
		Items: []domain.MenuItem{
			item(1, "Tangy Chicken", "Chicken in a tangy, spicy sauce", 320, 22),
			item(2, "Butter Naan", "Soft tandoori naan with butter", 60, 8),
		},
	},
	{
		Restaurant: Restaurant{ID: 37, Name: "Joe's Pizza", Address: "80 Feet Road, Koramangala, Bengaluru", Cuisine: "Italian", AvgPrepMinutes: 18, IsOpen: true},
		Items: []domain.MenuItem{
			item(1, "Margherita Pizza", "Hand-stretched base, tomato and mozzarella", 330, 18),
			item(2, "Pepperoni Pizza", "Spicy pepperoni with mozzarella", 450, 20),
			item(3, "Cheesy Garlic Bread", "Garlic bread topped with cheese", 170, 10),
			{ID: 4, Name: "Tiramisu", Description: "Coffee soaked sponge with mascarpone", PriceINR: 240, AvgPrepMinutes: 5, IsAvailable: false},
		},
	},
	{
		Restaurant: Restaurant{ID: 38, Name: "Midnight Grill", Address: "Church Street, Bengaluru", Cuisine: "American", AvgPrepMinutes: 22, IsOpen: false},
		Items: []domain.MenuItem{
			item(1, "Grilled Chicken Wrap", "Chargrilled chicken with slaw", 260, 15),
			item(2, "Smoky Paneer Sandwich", "Smoked paneer, peppers and cheese", 220, 12),
		},
	},
}

// SeedNames lists the restaurant names in the demo catalogue.
func SeedNames() []string {
	out := make([]string, len(seedCatalogue))
	for i, r := range seedCatalogue {
		out[i] = r.Name
	}
	return out
}
