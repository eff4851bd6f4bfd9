package sync

import "sort"

// OpTag labels one region of a sequence alignment.
type OpTag string

const (
	OpEqual   OpTag = "equal"
	OpReplace OpTag = "replace"
	OpDelete  OpTag = "delete"
	OpInsert  OpTag = "insert"
)

// Opcode describes how to turn a[I1:I2] into b[J1:J2].
type Opcode struct {
	Tag OpTag
	I1  int
	I2  int
	J1  int
	J2  int
}

type matchBlock struct {
	a    int
	b    int
	size int
}

// Opcodes aligns two sequences of unique keys and returns the edit script
// as a list of equal/replace/delete/insert regions covering both sequences
// end to end. The alignment maximizes contiguous runs of equal elements,
// preferring the leftmost longest run, so the same inputs always produce
// the same script.
func Opcodes(a, b []string) []Opcode {
	var opcodes []Opcode
	i, j := 0, 0
	for _, m := range matchingBlocks(a, b) {
		var tag OpTag
		switch {
		case i < m.a && j < m.b:
			tag = OpReplace
		case i < m.a:
			tag = OpDelete
		case j < m.b:
			tag = OpInsert
		}
		if tag != "" {
			opcodes = append(opcodes, Opcode{Tag: tag, I1: i, I2: m.a, J1: j, J2: m.b})
		}
		i, j = m.a+m.size, m.b+m.size
		if m.size > 0 {
			opcodes = append(opcodes, Opcode{Tag: OpEqual, I1: m.a, I2: i, J1: m.b, J2: j})
		}
	}
	return opcodes
}

// matchingBlocks finds the maximal matching runs between a and b by
// recursively splitting around the longest match, then merging adjacent
// runs. The terminating zero-length block at (len(a), len(b)) makes opcode
// derivation uniform.
func matchingBlocks(a, b []string) []matchBlock {
	b2j := make(map[string][]int, len(b))
	for j, s := range b {
		b2j[s] = append(b2j[s], j)
	}

	type span struct {
		alo, ahi, blo, bhi int
	}
	queue := []span{{0, len(a), 0, len(b)}}

	var matched []matchBlock
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		m := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if m.size == 0 {
			continue
		}
		matched = append(matched, m)
		if s.alo < m.a && s.blo < m.b {
			queue = append(queue, span{s.alo, m.a, s.blo, m.b})
		}
		if m.a+m.size < s.ahi && m.b+m.size < s.bhi {
			queue = append(queue, span{m.a + m.size, s.ahi, m.b + m.size, s.bhi})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].a != matched[j].a {
			return matched[i].a < matched[j].a
		}
		return matched[i].b < matched[j].b
	})

	// Merge adjacent runs.
	var blocks []matchBlock
	var cur matchBlock
	for _, m := range matched {
		if cur.size > 0 && cur.a+cur.size == m.a && cur.b+cur.size == m.b {
			cur.size += m.size
			continue
		}
		if cur.size > 0 {
			blocks = append(blocks, cur)
		}
		cur = m
	}
	if cur.size > 0 {
		blocks = append(blocks, cur)
	}
	return append(blocks, matchBlock{a: len(a), b: len(b)})
}

// longestMatch finds the longest run of equal elements within
// a[alo:ahi] x b[blo:bhi]; ties go to the run starting earliest in a, then
// earliest in b.
func longestMatch(a []string, b2j map[string][]int, alo, ahi, blo, bhi int) matchBlock {
	best := matchBlock{a: alo, b: blo}
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newj2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > best.size {
				best = matchBlock{a: i - k + 1, b: j - k + 1, size: k}
			}
		}
		j2len = newj2len
	}
	return best
}
