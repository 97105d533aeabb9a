package engine

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/hailam/xqplay/internal/board"
)

// Bound classifies a stored score relative to the search window.
type Bound uint8

const (
	BoundNone  Bound = 0
	BoundUpper Bound = 1
	BoundLower Bound = 2
	BoundExact Bound = BoundUpper | BoundLower
)

// ttEntry is one 16-byte slot. Reads and writes are unsynchronized; a
// torn entry fails the key check or yields a harmless bogus move that
// the move picker filters through pseudo-legality.
type ttEntry struct {
	key32    uint32
	move     board.Move
	value    int16
	eval     int16
	depth8   uint8
	genBound uint8
	pad      [4]byte
}

const (
	clusterSize     = 3
	generationDelta = 8
	generationMask  = 0xF8
)

// ttCluster packs three 16-byte entries into 48 bytes.
type ttCluster struct {
	entries [clusterSize]ttEntry
}

// TTData is the decoded result of a probe.
type TTData struct {
	Move  board.Move
	Value Value
	Eval  Value
	Depth int
	Bound Bound
	IsPV  bool
}

// TTWriter refers back to the slot selected by Probe so the caller can
// save a result after searching.
type TTWriter struct {
	entry *ttEntry
	table *TranspositionTable
}

// TranspositionTable is shared by all search workers. Entries are aged
// by a generation counter bumped at the start of every search.
type TranspositionTable struct {
	clusters   []ttCluster
	generation uint8
}

// NewTranspositionTable allocates a table of the given size in MiB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	tt := &TranspositionTable{}
	tt.Resize(sizeMB)
	return tt
}

// Resize reallocates the table. Not safe concurrently with a search.
func (tt *TranspositionTable) Resize(sizeMB int) {
	if sizeMB < 1 {
		sizeMB = 1
	}
	count := uint64(sizeMB) * 1024 * 1024 / uint64(unsafe.Sizeof(ttCluster{}))
	tt.clusters = make([]ttCluster, count)
	tt.generation = 0
}

// Clear wipes all entries and resets the generation.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		tt.clusters[i] = ttCluster{}
	}
	tt.generation = 0
}

// NewSearch ages the table by one generation.
func (tt *TranspositionTable) NewSearch() {
	tt.generation += generationDelta
}

func (tt *TranspositionTable) cluster(key uint64) *ttCluster {
	idx, _ := bits.Mul64(key, uint64(len(tt.clusters)))
	return &tt.clusters[idx]
}

// relativeAge measures how many generations ago an entry was written,
// cyclic in the 5 aging bits.
func (tt *TranspositionTable) relativeAge(genBound uint8) int {
	return int((0x100+generationDelta-1+uint16(tt.generation)-uint16(genBound))&generationMask) / generationDelta
}

func (e *ttEntry) occupied() bool {
	return e.depth8 != 0 || e.genBound != 0 || e.key32 != 0
}

// Probe looks up key and returns the decoded entry, whether the hit is
// usable, and a writer for the replacement slot.
func (tt *TranspositionTable) Probe(key uint64) (TTData, bool, TTWriter) {
	cl := tt.cluster(key)
	key32 := uint32(key)

	for i := range cl.entries {
		e := &cl.entries[i]
		if e.key32 == key32 && e.occupied() {
			return TTData{
				Move:  e.move,
				Value: Value(e.value),
				Eval:  Value(e.eval),
				Depth: int(e.depth8) + DepthEntryOffset,
				Bound: Bound(e.genBound & 0x3),
				IsPV:  e.genBound&0x4 != 0,
			}, true, TTWriter{entry: e, table: tt}
		}
	}

	// No hit: pick the shallowest entry adjusted for age.
	replace := &cl.entries[0]
	for i := 1; i < clusterSize; i++ {
		e := &cl.entries[i]
		if int(replace.depth8)-8*tt.relativeAge(replace.genBound) >
			int(e.depth8)-8*tt.relativeAge(e.genBound) {
			replace = e
		}
	}
	return TTData{Value: ValueNone, Eval: ValueNone, Depth: DepthUnsearched}, false, TTWriter{entry: replace, table: tt}
}

// Save stores a search result, preferring deeper and exact data over
// what the slot currently holds.
func (w TTWriter) Save(key uint64, v Value, pv bool, b Bound, depth int, m board.Move, eval Value) {
	e := w.entry
	key32 := uint32(key)

	if m != board.NoMove || key32 != e.key32 {
		e.move = m
	}

	// Overwrite less valuable entries only.
	if b == BoundExact ||
		key32 != e.key32 ||
		depth-DepthEntryOffset+2*b2i(pv) > int(e.depth8)-4 ||
		w.table.relativeAge(e.genBound) != 0 {
		e.key32 = key32
		e.depth8 = uint8(depth - DepthEntryOffset)
		e.genBound = w.table.generation | uint8(b2i(pv))<<2 | uint8(b)
		e.value = int16(v)
		e.eval = int16(eval)
	}
}

// Hashfull estimates the permille of the table written this search.
func (tt *TranspositionTable) Hashfull() int {
	cnt := 0
	sample := 1000
	if len(tt.clusters) < sample {
		sample = len(tt.clusters)
	}
	for i := 0; i < sample; i++ {
		for j := range tt.clusters[i].entries {
			e := &tt.clusters[i].entries[j]
			if e.occupied() && e.genBound&generationMask == tt.generation {
				cnt++
			}
		}
	}
	return cnt / clusterSize
}

// Prefetch hints the cluster for key into cache. Go has no portable
// prefetch intrinsic, so this is a cheap read the compiler keeps.
func (tt *TranspositionTable) Prefetch(key uint64) {
	cl := tt.cluster(key)
	_ = atomic.LoadUint32(&cl.entries[0].key32)
}

// valueToTT shifts mate scores so they are stored relative to the
// current node rather than the root.
func valueToTT(v Value, ply int) int16 {
	if v == ValueNone {
		return int16(ValueNone)
	}
	if IsWin(v) {
		return int16(v + ply)
	}
	if IsLoss(v) {
		return int16(v - ply)
	}
	return int16(v)
}

// valueFromTT undoes the shift and downgrades mate scores that the
// 120-ply rule would spoil before they can be delivered.
func valueFromTT(v Value, ply, rule60 int) Value {
	if v == ValueNone {
		return ValueNone
	}
	if IsWin(v) {
		if ValueMate-v > 120-rule60 {
			return ValueMateInMaxPly - 1
		}
		return v - ply
	}
	if IsLoss(v) {
		if ValueMate+v > 120-rule60 {
			return ValueMatedInMaxPly + 1
		}
		return v + ply
	}
	return v
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
