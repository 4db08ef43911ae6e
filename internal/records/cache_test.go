package records

import (
	"testing"

	"github.com/sweeney/shake-timer/internal/api"
)

func TestCacheAppliesInOrder(t *testing.T) {
	var c Cache
	s1 := c.Begin()
	s2 := c.Begin()

	if !c.Apply(s1, []api.Record{{ID: "a"}}) {
		t.Error("first response should apply")
	}
	if !c.Apply(s2, []api.Record{{ID: "a"}, {ID: "b"}}) {
		t.Error("second response should apply")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 records, got %d", c.Len())
	}
}

func TestCacheDiscardsStaleResponse(t *testing.T) {
	var c Cache
	s1 := c.Begin()
	s2 := c.Begin()

	if !c.Apply(s2, []api.Record{{ID: "new"}}) {
		t.Fatal("newer response should apply")
	}
	if c.Apply(s1, []api.Record{{ID: "old"}}) {
		t.Error("older response arriving late must be discarded")
	}
	recs := c.Records()
	if len(recs) != 1 || recs[0].ID != "new" {
		t.Errorf("expected newer snapshot, got %+v", recs)
	}
}

func TestCacheRejectsUnissuedSequence(t *testing.T) {
	var c Cache
	if c.Apply(1, []api.Record{{ID: "x"}}) {
		t.Error("sequence number never handed out should be rejected")
	}
}

func TestCacheClearInvalidatesOutstanding(t *testing.T) {
	var c Cache
	s1 := c.Begin()
	c.Apply(s1, []api.Record{{ID: "a"}})

	s2 := c.Begin()
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty after Clear, got %d", c.Len())
	}
	if c.Apply(s2, []api.Record{{ID: "b"}}) {
		t.Error("request begun before Clear must not apply")
	}

	s3 := c.Begin()
	if !c.Apply(s3, []api.Record{{ID: "c"}}) {
		t.Error("request begun after Clear should apply")
	}
}

func TestCacheRecordsIsCopy(t *testing.T) {
	var c Cache
	c.Apply(c.Begin(), []api.Record{{ID: "a", Time: 1}})

	recs := c.Records()
	recs[0].Time = 99

	if c.Records()[0].Time != 1 {
		t.Error("Records must return a copy")
	}
}
