package domain

import (
	"encoding/json"
	"testing"
)

func TestTaskKindRank(t *testing.T) {
	if !(KindMenu.Rank() < KindPrepTime.Rank() && KindPrepTime.Rank() < KindETA.Rank()) {
		t.Errorf("ranks out of order: menu=%d prep=%d eta=%d", KindMenu.Rank(), KindPrepTime.Rank(), KindETA.Rank())
	}
	if TaskKind("weather").Valid() {
		t.Error("unknown kind should not be valid")
	}
}

func TestQueryFields(t *testing.T) {
	q := PrepTimeQuery{Restaurant: "Spice Hub", Items: []string{"Paneer Tikka"}}
	f := q.Fields()
	items, ok := f["items"].([]any)
	if !ok || len(items) != 1 || items[0] != "Paneer Tikka" {
		t.Errorf("items = %#v", f["items"])
	}

	// Empty items still serialize as an array.
	raw, _ := json.Marshal(PrepTimeQuery{Restaurant: "x"}.Fields())
	if string(raw) != `{"items":[],"restaurant":"x"}` {
		t.Errorf("marshal = %s", raw)
	}
}

func TestSubTaskDescribe(t *testing.T) {
	st := SubTask{ID: "t2", Worker: WorkerRider, Query: EtaQuery{}, DependsOn: "t1"}
	if got := st.Describe(); got != "t2:eta_query->rider after t1" {
		t.Errorf("Describe = %q", got)
	}
}

func TestWorkerResultDecode(t *testing.T) {
	r := Success(json.RawMessage(`{"restaurant_name":"Joe's Pizza","address":"12 Main St"}`))
	var p MenuPayload
	if err := r.Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Address != "12 Main St" {
		t.Errorf("Address = %q", p.Address)
	}

	if err := TimeoutResult().Decode(&p); err == nil {
		t.Error("decoding a failure should error")
	}
	if err := Success(nil).Decode(&p); err == nil {
		t.Error("decoding an empty payload should error")
	}
}

func TestSessionContextClone(t *testing.T) {
	c := SessionContext{MenuItems: []string{"a"}}
	d := c.Clone()
	d.MenuItems[0] = "b"
	if c.MenuItems[0] != "a" {
		t.Error("Clone shares the MenuItems backing array")
	}
}
