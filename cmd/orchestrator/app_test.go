package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-router/internal/adapter/restaurant"
	"food-router/internal/adapter/rider"
	"food-router/internal/adapter/workerserver"
	"food-router/internal/domain"
	"food-router/internal/infra/config"
	"food-router/internal/infra/logger"
)

func startWorkers(t *testing.T) (restaurantURL, riderURL string) {
	t.Helper()
	log := logger.Discard()

	store, err := restaurant.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Seed(context.Background())
	require.NoError(t, err)

	svc := restaurant.NewService(store, log)
	rreg := workerserver.NewRegistry("restaurant", "test", "v-test", log)
	for _, s := range svc.Skills() {
		require.NoError(t, rreg.Register(s))
	}
	rsrv := httptest.NewServer(workerserver.New(rreg, config.WorkerServerConfig{}, log).Handler())
	t.Cleanup(rsrv.Close)

	est := rider.NewService(rider.NewDemoEstimator(0), log)
	dreg := workerserver.NewRegistry("rider", "test", "v-test", log)
	for _, s := range est.Skills() {
		require.NoError(t, dreg.Register(s))
	}
	dsrv := httptest.NewServer(workerserver.New(dreg, config.WorkerServerConfig{}, log).Handler())
	t.Cleanup(dsrv.Close)

	return rsrv.URL, dsrv.URL
}

func testConfig(restaurantURL, riderURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Logger.Level = "error"
	cfg.Router.DiscoverCards = true
	for i := range cfg.Workers {
		switch cfg.Workers[i].Name {
		case "restaurant":
			cfg.Workers[i].Endpoint = restaurantURL
		case "rider":
			cfg.Workers[i].Endpoint = riderURL
		}
		cfg.Workers[i].Timeout = 2 * time.Second
	}
	return cfg
}

func TestAppRoutesToWorkers(t *testing.T) {
	restaurantURL, riderURL := startWorkers(t)
	ctx := context.Background()

	a, err := newApp(ctx, testConfig(restaurantURL, riderURL))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"restaurant", "rider"}, a.workerNames())
	assert.Equal(t, map[string]string{"restaurant": "closed", "rider": "closed"}, a.workerStatus())

	ans, err := a.agent.Handle(ctx, domain.Utterance{
		SessionID:  "e2e",
		Text:       "show me the menu at Joe's Pizza and how long to deliver?",
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, ans.FullyDegraded)
	assert.Contains(t, ans.Text, "Joe's Pizza")
	assert.Contains(t, ans.Text, "min")

	turns, err := a.agent.History("e2e")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
	live, active := a.sessionStats()
	assert.Equal(t, 1, live)
	assert.Equal(t, 0, active)
}

func TestAppDegradesWhenWorkerDown(t *testing.T) {
	restaurantURL, _ := startWorkers(t)
	down := httptest.NewServer(nil)
	downURL := down.URL
	down.Close()

	ctx := context.Background()
	a, err := newApp(ctx, testConfig(restaurantURL, downURL))
	require.NoError(t, err)
	defer a.Close()

	ans, err := a.agent.Handle(ctx, domain.Utterance{SessionID: "down", Text: "menu at Spice Hub", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, ans.FullyDegraded)
	assert.Contains(t, ans.Text, "Spice Hub")

	// The restaurant address is known from the menu turn, so only the rider
	// is asked and the answer is fully degraded.
	ans, err = a.agent.Handle(ctx, domain.Utterance{SessionID: "down", Text: "how long to deliver?", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, ans.FullyDegraded)

	// A fresh session needs the restaurant lookup first; it succeeds.
	ans, err = a.agent.Handle(ctx, domain.Utterance{SessionID: "fresh", Text: "how long to deliver from Burger Corner?", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, ans.FullyDegraded)
	assert.Contains(t, ans.Text, "Burger Corner")
	assert.Contains(t, ans.Text, "I couldn't get the delivery ETA")
}

func TestAppRejectsUnknownTransport(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Workers[0].Transport = "carrier-pigeon"
	cfg.Router.DiscoverCards = false

	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}
