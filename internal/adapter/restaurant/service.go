package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"food-router/internal/adapter/workerserver"
	"food-router/internal/domain"
)

const (
	menuSchema = `{
		"type": "object",
		"properties": {"restaurant": {"type": "string", "minLength": 1}},
		"required": ["restaurant"]
	}`
	prepSchema = `{
		"type": "object",
		"properties": {
			"restaurant": {"type": "string", "minLength": 1},
			"items": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["restaurant"]
	}`

	defaultListLimit = 10
	maxListLimit     = 100
)

// Service implements the restaurant worker's skills over a Store.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(store *Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Skills returns the menu_query and prep_time_query skills.
func (s *Service) Skills() []workerserver.Skill {
	return []workerserver.Skill{
		{
			Kind:        domain.KindMenu,
			Description: "Get a restaurant's address, opening state and menu with prices.",
			Schema:      json.RawMessage(menuSchema),
			Handle:      s.handleMenu,
		},
		{
			Kind:        domain.KindPrepTime,
			Description: "Price a list of menu items and estimate the kitchen preparation time.",
			Schema:      json.RawMessage(prepSchema),
			Handle:      s.handlePrepTime,
		},
	}
}

func (s *Service) handleMenu(ctx context.Context, fields map[string]any) (any, error) {
	return s.Menu(ctx, stringField(fields, "restaurant"))
}

func (s *Service) handlePrepTime(ctx context.Context, fields map[string]any) (any, error) {
	return s.PrepTime(ctx, stringField(fields, "restaurant"), stringList(fields, "items"))
}

// Menu answers a menu query.
func (s *Service) Menu(ctx context.Context, name string) (domain.MenuPayload, error) {
	r, err := s.lookup(ctx, "restaurant.Menu", name)
	if err != nil {
		return domain.MenuPayload{}, err
	}
	items, err := s.store.Menu(ctx, r.ID, false)
	if err != nil {
		return domain.MenuPayload{}, err
	}
	return domain.MenuPayload{
		RestaurantID:   r.ID,
		RestaurantName: r.Name,
		Address:        r.Address,
		Cuisine:        r.Cuisine,
		IsOpen:         r.IsOpen,
		Items:          items,
	}, nil
}

// PrepTime prices the requested items and estimates kitchen time as the
// larger of the restaurant's baseline and the slowest item. With no items
// it returns the baseline alone.
func (s *Service) PrepTime(ctx context.Context, name string, wanted []string) (domain.PrepTimePayload, error) {
	const op = "restaurant.PrepTime"
	r, err := s.lookup(ctx, op, name)
	if err != nil {
		return domain.PrepTimePayload{}, err
	}
	if !r.IsOpen {
		return domain.PrepTimePayload{}, workerserver.Businessf(op, "%s is closed right now", r.Name)
	}

	out := domain.PrepTimePayload{
		RestaurantID:         r.ID,
		RestaurantName:       r.Name,
		Address:              r.Address,
		Items:                []domain.MenuItem{},
		EstimatedPrepMinutes: r.AvgPrepMinutes,
	}
	if len(wanted) == 0 {
		out.Notes = "No items given; this is the kitchen's usual preparation time."
		return out, nil
	}

	menu, err := s.store.Menu(ctx, r.ID, false)
	if err != nil {
		return domain.PrepTimePayload{}, err
	}
	var missing, unavailable []string
	for _, w := range wanted {
		it, ok := matchMenuItem(menu, w)
		switch {
		case !ok:
			missing = append(missing, w)
		case !it.IsAvailable:
			unavailable = append(unavailable, it.Name)
		default:
			out.Items = append(out.Items, it)
			out.TotalPriceINR += it.PriceINR
			if it.AvgPrepMinutes > out.EstimatedPrepMinutes {
				out.EstimatedPrepMinutes = it.AvgPrepMinutes
			}
		}
	}
	if len(missing) > 0 {
		return domain.PrepTimePayload{}, workerserver.Businessf(op, "not on the menu at %s: %s", r.Name, strings.Join(missing, ", "))
	}
	if len(unavailable) > 0 {
		return domain.PrepTimePayload{}, workerserver.Businessf(op, "currently unavailable at %s: %s", r.Name, strings.Join(unavailable, ", "))
	}
	return out, nil
}

func (s *Service) lookup(ctx context.Context, op, name string) (Restaurant, error) {
	if strings.TrimSpace(name) == "" {
		return Restaurant{}, workerserver.Business(op, "restaurant name is required")
	}
	r, err := s.store.RestaurantByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return Restaurant{}, workerserver.Businessf(op, "no such restaurant: %s", name)
	}
	return r, err
}

// matchMenuItem prefers an exact case-insensitive name match, then the
// first item whose name contains the request ("margherita" finds
// "Margherita Pizza").
func matchMenuItem(menu []domain.MenuItem, want string) (domain.MenuItem, bool) {
	w := strings.ToLower(strings.TrimSpace(want))
	if w == "" {
		return domain.MenuItem{}, false
	}
	for _, it := range menu {
		if strings.ToLower(it.Name) == w {
			return it, true
		}
	}
	for _, it := range menu {
		if strings.Contains(strings.ToLower(it.Name), w) {
			return it, true
		}
	}
	return domain.MenuItem{}, false
}

// Tools returns the extra MCP tools for browsing the catalogue.
func (s *Service) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("list_restaurants",
				mcp.WithDescription("List restaurants, optionally filtered by cuisine."),
				mcp.WithString("cuisine", mcp.Description("Cuisine filter, e.g. Indian. Case-insensitive.")),
				mcp.WithBoolean("only_open", mcp.Description("Only return open restaurants (default true).")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of rows (default 10).")),
			),
			Handler: s.listRestaurantsTool,
		},
		{
			Tool: mcp.NewTool("search_menu_items",
				mcp.WithDescription("Search available menu items at open restaurants by name or description."),
				mcp.WithString("text", mcp.Required(), mcp.Description("Text to search for.")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of rows (default 10).")),
			),
			Handler: s.searchMenuItemsTool,
		},
	}
}

func (s *Service) listRestaurantsTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	onlyOpen := true
	if v, ok := args["only_open"].(bool); ok {
		onlyOpen = v
	}
	rows, err := s.store.ListRestaurants(ctx, stringField(args, "cuisine"), onlyOpen, limitArg(args))
	if err != nil {
		s.logger.Error("list restaurants failed", "error", err)
		return mcp.NewToolResultError("could not list restaurants"), nil
	}
	if rows == nil {
		rows = []Restaurant{}
	}
	return workerserver.JSONResult(rows)
}

func (s *Service) searchMenuItemsTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text := strings.TrimSpace(stringField(args, "text"))
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	hits, err := s.store.SearchMenuItems(ctx, text, limitArg(args))
	if err != nil {
		s.logger.Error("search menu items failed", "error", err)
		return mcp.NewToolResultError("could not search menu items"), nil
	}
	if hits == nil {
		hits = []SearchHit{}
	}
	return workerserver.JSONResult(hits)
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func stringList(fields map[string]any, key string) []string {
	raw, _ := fields[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func limitArg(args map[string]any) int {
	n, ok := args["limit"].(float64)
	if !ok || n <= 0 {
		return defaultListLimit
	}
	return min(int(n), maxListLimit)
}
