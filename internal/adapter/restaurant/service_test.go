package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-router/internal/adapter/workerserver"
	"food-router/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	seeded, err := st.Seed(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return st
}

func newTestService(t *testing.T) *Service {
	return NewService(newTestStore(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func businessReason(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrWorkerBusiness), "want business error, got %v", err)
	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	return de.Detail
}

func TestStoreSeedIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	seeded, err := st.Seed(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)

	names, err := st.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SeedNames(), names)
}

func TestStoreRestaurantByName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Joe's Pizza", "joes pizza", "  JOE'S PIZZA "} {
		r, err := st.RestaurantByName(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, int64(37), r.ID)
	}

	_, err := st.RestaurantByName(ctx, "Taco Town")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.CodeRestaurantNotFound, domain.ErrorCodeOf(err))
}

func TestStoreListAndSearch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	indian, err := st.ListRestaurants(ctx, "indian", true, 10)
	require.NoError(t, err)
	require.Len(t, indian, 2)
	assert.Equal(t, "Spice Hub", indian[0].Name)

	all, err := st.ListRestaurants(ctx, "", false, 100)
	require.NoError(t, err)
	assert.Len(t, all, len(seedCatalogue))

	open, err := st.ListRestaurants(ctx, "", true, 100)
	require.NoError(t, err)
	assert.Len(t, open, len(seedCatalogue)-1)

	hits, err := st.SearchMenuItems(ctx, "naan", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Spice Hub", hits[0].RestaurantName)
	assert.Equal(t, "Spicy Garden 36", hits[1].RestaurantName)

	// Closed restaurants and unavailable items are excluded.
	hits, err = st.SearchMenuItems(ctx, "paneer", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	hits, err = st.SearchMenuItems(ctx, "tiramisu", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestServiceMenu(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.Menu(context.Background(), "pizza planet")
	require.NoError(t, err)
	assert.Equal(t, "Pizza Planet", got.RestaurantName)
	assert.Equal(t, "Indiranagar, Bengaluru", got.Address)
	assert.True(t, got.IsOpen)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "Margherita Pizza", got.Items[0].Name)
	assert.Equal(t, 350.0, got.Items[0].PriceINR)

	_, err = svc.Menu(context.Background(), "Taco Town")
	assert.Equal(t, "no such restaurant: Taco Town", businessReason(t, err))
}

func TestServicePrepTime(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		items     []string
		wantPrep  int
		wantTotal float64
	}{
		{"baseline when no items", nil, 25, 0},
		{"fast items keep baseline", []string{"Butter Naan"}, 25, 60},
		{"several items", []string{"butter naan", "Veg Biryani"}, 25, 320},
		{"partial name", []string{"paneer"}, 25, 280},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.PrepTime(ctx, "Spice Hub", tt.items)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrep, got.EstimatedPrepMinutes)
			assert.InDelta(t, tt.wantTotal, got.TotalPriceINR, 0.001)
			assert.Equal(t, "MG Road, Bengaluru", got.Address)
		})
	}

	got, err := svc.PrepTime(ctx, "Pizza Planet", []string{"Farmhouse Pizza"})
	require.NoError(t, err)
	assert.Equal(t, 22, got.EstimatedPrepMinutes, "item prep above the 20 minute baseline")
}

func TestServicePrepTimeBusinessFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.PrepTime(ctx, "Midnight Grill", nil)
	assert.Equal(t, "Midnight Grill is closed right now", businessReason(t, err))

	_, err = svc.PrepTime(ctx, "Spice Hub", []string{"Sushi", "Butter Naan", "Ramen"})
	assert.Equal(t, "not on the menu at Spice Hub: Sushi, Ramen", businessReason(t, err))

	_, err = svc.PrepTime(ctx, "Joe's Pizza", []string{"Tiramisu"})
	assert.Equal(t, "currently unavailable at Joe's Pizza: Tiramisu", businessReason(t, err))

	_, err = svc.PrepTime(ctx, "", nil)
	assert.Equal(t, "restaurant name is required", businessReason(t, err))
}

func TestServiceSkillsThroughRegistry(t *testing.T) {
	svc := newTestService(t)
	reg := workerserver.NewRegistry("restaurant", "Restaurant catalogue", "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, sk := range svc.Skills() {
		require.NoError(t, reg.Register(sk))
	}
	ctx := context.Background()

	resp, err := reg.Execute(ctx, domain.WireRequest{
		ID:     "r1",
		Kind:   domain.KindPrepTime,
		Fields: domain.PrepTimeQuery{Restaurant: "Burger Corner", Items: []string{"Veggie Burger", "Cold Coffee"}}.Fields(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, resp.Status, resp.Error)
	var p domain.PrepTimePayload
	require.NoError(t, json.Unmarshal(resp.Payload, &p))
	assert.Equal(t, 18, p.EstimatedPrepMinutes)
	assert.InDelta(t, 340.0, p.TotalPriceINR, 0.001)

	resp, err = reg.Execute(ctx, domain.WireRequest{ID: "r2", Kind: domain.KindMenu, Fields: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "invalid fields for menu_query")
}

func TestServiceMCPTools(t *testing.T) {
	svc := newTestService(t)
	tools := svc.Tools()
	require.Len(t, tools, 2)

	req := mcp.CallToolRequest{}
	req.Params.Name = "search_menu_items"
	req.Params.Arguments = map[string]any{"text": "pizza", "limit": float64(2)}
	res, err := tools[1].Handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := res.Content[0].(mcp.TextContent).Text
	var hits []SearchHit
	require.NoError(t, json.Unmarshal([]byte(text), &hits))
	assert.Len(t, hits, 2)

	req.Params.Arguments = map[string]any{"text": " "}
	res, err = tools[1].Handler(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	req.Params.Name = "list_restaurants"
	req.Params.Arguments = map[string]any{"only_open": false}
	res, err = tools[0].Handler(context.Background(), req)
	require.NoError(t, err)
	var rows []Restaurant
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(mcp.TextContent).Text), &rows))
	assert.Len(t, rows, len(seedCatalogue))
}
