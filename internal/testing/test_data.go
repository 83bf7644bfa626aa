package testing

import "loungebackend/internal/inventory"

// testInventory is the bar catalog every suite starts with.
var testInventory = []inventory.SeedItem{
	{Name: "Cola", Price: 10, Quantity: 5},
	{Name: "Chips", Price: 7.5, Quantity: 3},
	{Name: "Water", Price: 5, Quantity: 10},
}
