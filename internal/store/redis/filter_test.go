package redis

import (
	"strings"
	"testing"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

func mustExpr(t *testing.T, m map[string]any) filter.Expression {
	t.Helper()
	expr, err := filter.FromMap(m)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return expr
}

func TestBuildFilter_Empty(t *testing.T) {
	if got := buildFilter(filter.Expression{}); got != "" {
		t.Errorf("buildFilter = %q, want empty", got)
	}
}

func TestBuildFilter_SingleCondition(t *testing.T) {
	got := buildFilter(mustExpr(t, map[string]any{"lang": "go"}))
	if got != `@__meta:{lang\=go}` {
		t.Errorf("buildFilter = %q", got)
	}
}

func TestBuildFilter_ConjunctionInFieldOrder(t *testing.T) {
	got := buildFilter(mustExpr(t, map[string]any{"z": "1", "a": "2"}))
	if got != `@__meta:{a\=2} @__meta:{z\=1}` {
		t.Errorf("buildFilter = %q", got)
	}
}

func TestBuildFilter_EncodesTypedValues(t *testing.T) {
	got := buildFilter(mustExpr(t, map[string]any{"archived": true}))
	if !strings.Contains(got, `archived\=true`) {
		t.Errorf("bool condition = %q", got)
	}

	got = buildFilter(mustExpr(t, map[string]any{"stars": 42}))
	if !strings.Contains(got, `stars\=42`) {
		t.Errorf("number condition = %q", got)
	}
}

func TestBuildFilter_EscapesSpecialChars(t *testing.T) {
	got := buildFilter(mustExpr(t, map[string]any{"path": "cmd/api, v2 (old)"}))
	for _, escaped := range []string{`\,`, `\ `, `\(`, `\)`} {
		if !strings.Contains(got, escaped) {
			t.Errorf("filter %q missing escape %q", got, escaped)
		}
	}
}

func TestEscapeQuery(t *testing.T) {
	got := escapeQuery(`hello "world" @here (now)`)
	for _, escaped := range []string{`\"`, `\@`, `\(`, `\)`} {
		if !strings.Contains(got, escaped) {
			t.Errorf("escaped query %q missing %q", got, escaped)
		}
	}
}

func TestMetaTags_SortedAndEncoded(t *testing.T) {
	got := metaTags(domain.Metadata{
		"z":        domain.String("last"),
		"a":        domain.Number(1.5),
		"archived": domain.Bool(false),
	})
	if got != "a=1.5;archived=false;z=last" {
		t.Errorf("metaTags = %q", got)
	}
}

func TestDocFields_RoundTrip(t *testing.T) {
	meta := domain.Metadata{"lang": domain.String("go"), "stars": domain.Number(7)}
	prov := domain.Provenance{Path: "pkg/a.go", StartLine: 10, EndLine: 20}
	doc, err := domain.NewDocument("pkg/a.go:10", "func A() {}", meta, prov, []float32{1, 2})
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	fields, err := docFields(&doc)
	if err != nil {
		t.Fatalf("docFields: %v", err)
	}
	if fields[fieldID] != "pkg/a.go:10" {
		t.Errorf("id field = %q", fields[fieldID])
	}
	if fields[fieldMeta] != "lang=go;stars=7" {
		t.Errorf("meta tags = %q", fields[fieldMeta])
	}

	content, gotMeta, gotProv := parseDoc(fields)
	if content != "func A() {}" {
		t.Errorf("content = %q", content)
	}
	if !gotMeta["lang"].Equal(domain.String("go")) || !gotMeta["stars"].Equal(domain.Number(7)) {
		t.Errorf("meta = %v", gotMeta)
	}
	if gotProv != prov {
		t.Errorf("prov = %+v, want %+v", gotProv, prov)
	}
}

func TestDocFields_OmitsEmptyMetadataAndProvenance(t *testing.T) {
	doc, err := domain.NewDocument("doc-1", "text", nil, domain.Provenance{}, []float32{1})
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	fields, err := docFields(&doc)
	if err != nil {
		t.Fatalf("docFields: %v", err)
	}
	if _, ok := fields[fieldMeta]; ok {
		t.Error("empty metadata must not be stored")
	}
	if _, ok := fields[fieldPath]; ok {
		t.Error("empty provenance must not be stored")
	}
}
