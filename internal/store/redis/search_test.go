package redis

import (
	"fmt"
	"strings"
	"testing"
)

func TestKNNSearchArgs_LimitWindowMatchesK(t *testing.T) {
	args := knnSearchArgs("repo", mustExpr(t, nil), []float32{1, 0}, 50)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "[KNN 50 @") {
		t.Errorf("args missing KNN k: %q", joined)
	}
	// The server defaults to a 10-row window; an explicit LIMIT must cover
	// every KNN hit.
	if !strings.Contains(joined, " LIMIT 0 50 ") {
		t.Errorf("args missing LIMIT window: %q", joined)
	}
	if !strings.Contains(joined, "DIALECT 2") {
		t.Errorf("args missing DIALECT: %q", joined)
	}
	if !strings.Contains(joined, "PARAMS 2 BLOB") {
		t.Errorf("args missing vector params: %q", joined)
	}
}

func TestKNNSearchArgs_FilterPrefixesQuery(t *testing.T) {
	args := knnSearchArgs("repo", mustExpr(t, map[string]any{"lang": "go"}), []float32{1}, 10)

	if args[0] != indexName("repo") {
		t.Errorf("index = %q", args[0])
	}
	want := `(@__meta:{lang\=go})=>[KNN 10 @` + fieldVector + ` $BLOB]`
	if args[1] != want {
		t.Errorf("query = %q, want %q", args[1], want)
	}
}

func TestKNNSearchArgs_LimitVaries(t *testing.T) {
	for _, limit := range []int{1, 10, 100} {
		args := knnSearchArgs("repo", mustExpr(t, nil), []float32{1}, limit)
		joined := strings.Join(args, " ")
		window := fmt.Sprintf(" LIMIT 0 %d ", limit)
		if !strings.Contains(joined, window) {
			t.Errorf("limit %d: args missing %q in %q", limit, window, joined)
		}
	}
}
