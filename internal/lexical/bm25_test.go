package lexical

import "testing"

func buildTestIndex() *Index {
	return Build([]Document{
		{ID: "c0", Text: "IP addressing assigns a unique IP address to every host on the network", Position: 0},
		{ID: "c1", Text: "Routing protocols exchange reachability information between routers", Position: 1},
		{ID: "c2", Text: "The transport layer provides end to end delivery using TCP and UDP", Position: 2},
		{ID: "c3", Text: "Subnetting divides an IP network into smaller address blocks", Position: 3},
	})
}

func TestIndex_Search_RanksTermMatchesFirst(t *testing.T) {
	idx := buildTestIndex()

	hits := idx.Search("IP addressing", 10)
	if len(hits) == 0 {
		t.Fatal("Search() returned no hits")
	}
	if hits[0].ID != "c0" {
		t.Errorf("Search() top hit = %s, want c0", hits[0].ID)
	}
	for _, hit := range hits {
		if hit.Score <= 0 {
			t.Errorf("Search() hit %s has non-positive score %f", hit.ID, hit.Score)
		}
	}
}

func TestIndex_Search_OmitsZeroScores(t *testing.T) {
	idx := buildTestIndex()

	hits := idx.Search("quantum entanglement", 10)
	if len(hits) != 0 {
		t.Errorf("Search() for absent terms returned %d hits, want 0", len(hits))
	}
}

func TestIndex_Search_TopK(t *testing.T) {
	idx := buildTestIndex()

	hits := idx.Search("network address routing transport", 2)
	if len(hits) > 2 {
		t.Errorf("Search() returned %d hits, want at most 2", len(hits))
	}
}

func TestIndex_Search_TieBreakByInsertionOrder(t *testing.T) {
	// Identical documents score identically; the earlier one must win.
	idx := Build([]Document{
		{ID: "later", Text: "alpha beta gamma", Position: 1},
		{ID: "earlier", Text: "alpha beta gamma", Position: 0},
	})

	hits := idx.Search("alpha", 10)
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].ID != "earlier" {
		t.Errorf("Search() tie broken in favor of %s, want earlier", hits[0].ID)
	}
}

func TestIndex_Search_StopwordOnlyQuery(t *testing.T) {
	idx := buildTestIndex()

	if hits := idx.Search("the of and", 10); hits != nil {
		t.Errorf("Search() with stopword-only query = %v, want nil", hits)
	}
}

func TestIndex_Search_EmptyIndex(t *testing.T) {
	idx := Build(nil)

	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
	if hits := idx.Search("anything", 5); hits != nil {
		t.Errorf("Search() on empty index = %v, want nil", hits)
	}
}

func TestIndex_Deterministic(t *testing.T) {
	idx := buildTestIndex()

	first := idx.Search("IP network", 10)
	for i := 0; i < 5; i++ {
		again := idx.Search("IP network", 10)
		if len(again) != len(first) {
			t.Fatalf("Search() result count changed between runs: %d vs %d", len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("Search() result %d changed between runs: %+v vs %+v", j, again[j], first[j])
			}
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: nil},
		{name: "punctuation only", text: "!!! ???", want: nil},
		{name: "mixed case and punctuation", text: "TCP/IP, explained.", want: []string{"tcp", "ip", "explained"}},
		{name: "digits kept", text: "IPv4 vs IPv6", want: []string{"ipv4", "vs", "ipv6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q)[%d] = %s, want %s", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFilterStopwords(t *testing.T) {
	got := FilterStopwords([]string{"the", "router", "and", "switch"})
	want := []string{"router", "switch"}
	if len(got) != len(want) {
		t.Fatalf("FilterStopwords() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("FilterStopwords()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if got := FilterStopwords([]string{"the", "of"}); got != nil {
		t.Errorf("FilterStopwords() all-stopword input = %v, want nil", got)
	}
}
