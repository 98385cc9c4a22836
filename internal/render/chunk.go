package render

import (
	"strconv"
	"strings"
)

// DefaultMaxLen stays under Telegram's 4096 limit with some headroom.
const DefaultMaxLen = 4000

var (
	rule      = strings.Repeat("=", 50)
	Separator = "\n" + strings.Repeat("-", 50) + "\n\n"
	Notice    = "[i] No new activities during this period.\n" + strings.Repeat("-", 50) + "\n"
)

// Summary parameterizes the header of the first block.
type Summary struct {
	Account string
	Period  string
	Total   int
}

func (s Summary) header() string {
	return "\n" + rule + "\n" +
		"  GitHub Activity Summary - " + s.Account + "\n" +
		"  Period: " + s.Period + "\n" +
		"  Total Activities: " + strconv.Itoa(s.Total) + "\n" +
		rule + "\n\n"
}

func continuationHeader(n int) string {
	return "\n" + rule + "\n" +
		"  GitHub Activity Summary (continued " + strconv.Itoa(n) + ")\n" +
		rule + "\n\n"
}

// Block is one outgoing message.
type Block struct {
	Index     int // 1-based
	Header    string
	Fragments []string
	Notice    string
}

// Text is the message body: header, then each fragment followed by the
// separator, then the notice (only set on an empty summary).
func (b Block) Text() string {
	var sb strings.Builder
	sb.WriteString(b.Header)
	for _, f := range b.Fragments {
		sb.WriteString(f)
		sb.WriteString(Separator)
	}
	sb.WriteString(b.Notice)
	return sb.String()
}

// Chunker packs fragments into blocks no longer than MaxLen, counted with Len.
type Chunker struct {
	MaxLen int
}

func (c Chunker) maxLen() int {
	if c.MaxLen <= 0 {
		return DefaultMaxLen
	}
	return c.MaxLen
}

// Chunk never splits a fragment. A fragment that does not fit even in an
// otherwise empty block gets a block of its own and may exceed MaxLen.
// No input yields a single block with the header and the no-activity notice.
func (c Chunker) Chunk(fragments []string, s Summary) []Block {
	first := Block{Index: 1, Header: s.header()}
	if len(fragments) == 0 {
		first.Notice = Notice
		return []Block{first}
	}

	limit := c.maxLen()
	sepLen := Len(Separator)
	blocks := make([]Block, 0, 1)
	cur := first
	curLen := Len(cur.Header)

	for _, f := range fragments {
		piece := Len(f) + sepLen
		if len(cur.Fragments) > 0 && curLen+piece > limit {
			blocks = append(blocks, cur)
			idx := cur.Index + 1
			cur = Block{Index: idx, Header: continuationHeader(idx)}
			curLen = Len(cur.Header)
		}
		cur.Fragments = append(cur.Fragments, f)
		curLen += piece
	}
	return append(blocks, cur)
}
