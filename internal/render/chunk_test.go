package render

import (
	"strconv"
	"strings"
	"testing"
)

func joinFragments(blocks []Block) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b.Fragments...)
	}
	return out
}

func TestChunkEmptyInput(t *testing.T) {
	t.Parallel()

	blocks := Chunker{}.Chunk(nil, Summary{Account: "octo", Period: "Last 5 Hours"})
	if len(blocks) != 1 {
		t.Fatalf("blocks=%d", len(blocks))
	}
	want := "\n" + strings.Repeat("=", 50) + "\n" +
		"  GitHub Activity Summary - octo\n" +
		"  Period: Last 5 Hours\n" +
		"  Total Activities: 0\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"[i] No new activities during this period.\n" + strings.Repeat("-", 50) + "\n"
	if got := blocks[0].Text(); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestChunkSingleBlock(t *testing.T) {
	t.Parallel()

	blocks := Chunker{}.Chunk([]string{"a", "b"}, Summary{Account: "octo", Period: "p", Total: 2})
	if len(blocks) != 1 {
		t.Fatalf("blocks=%d", len(blocks))
	}
	text := blocks[0].Text()
	if !strings.Contains(text, "Total Activities: 2") || !strings.HasSuffix(text, "a"+Separator+"b"+Separator) {
		t.Fatalf("text=%q", text)
	}
}

func TestChunkRespectsBoundAndOrder(t *testing.T) {
	t.Parallel()

	var frags []string
	for i := 0; i < 40; i++ {
		frags = append(frags, strings.Repeat(string(rune('a'+i%26)), 150+i*7))
	}
	c := Chunker{MaxLen: 1000}
	blocks := c.Chunk(frags, Summary{Account: "octo", Period: "p", Total: len(frags)})
	if len(blocks) < 2 {
		t.Fatalf("expected several blocks, got %d", len(blocks))
	}
	for i, b := range blocks {
		if b.Index != i+1 {
			t.Fatalf("block %d index=%d", i, b.Index)
		}
		if len(b.Fragments) == 0 {
			t.Fatalf("block %d has no fragments", b.Index)
		}
		if n := Len(b.Text()); n > 1000 {
			t.Fatalf("block %d len=%d", b.Index, n)
		}
		if i > 0 && !strings.Contains(b.Header, "(continued "+strconv.Itoa(i+1)+")") {
			t.Fatalf("block %d header=%q", b.Index, b.Header)
		}
	}
	got := joinFragments(blocks)
	if strings.Join(got, "|") != strings.Join(frags, "|") {
		t.Fatalf("fragments reordered or lost")
	}
}

func TestChunkOversizedFragmentStandsAlone(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("z", 500)
	blocks := Chunker{MaxLen: 300}.Chunk([]string{"small", huge, "tail"}, Summary{Account: "o", Period: "p", Total: 3})
	if len(blocks) != 3 {
		t.Fatalf("blocks=%d", len(blocks))
	}
	if len(blocks[1].Fragments) != 1 || blocks[1].Fragments[0] != huge {
		t.Fatalf("oversized fragment not alone: %+v", blocks[1].Fragments)
	}
}

func TestChunkCountsUTF16(t *testing.T) {
	t.Parallel()

	if n := Len("a😀"); n != 3 {
		t.Fatalf("Len=%d, want 3", n)
	}
}
