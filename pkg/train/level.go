package train

/*
mrra locates the staged cells of one node and predictor: the buffer they
live in, their region relative to the predictor's offset, and how many of
the node's samples sit implicitly at the predictor's dense rank.
*/
type mrra struct {
	defined   bool
	singleton bool
	bufIdx    uint8
	start     int
	extent    int
	implicit  int
}

/*
level records the definitions made while one frontier was current. reach
maps, for every node of the level, the low path bits of a sample to the
index of its descendant in the current front, -1 marking slots no live
descendant occupies. A node without live descendants has a nil reach.
*/
type level struct {
	nNode    int
	nPred    int
	def      []mrra
	defCount int
	reach    [][]int32
}

func newLevel(nNode, nPred int) *level {
	lv := &level{
		nNode: nNode,
		nPred: nPred,
		def:   make([]mrra, nNode*nPred),
		reach: make([][]int32, nNode),
	}
	for i := range lv.reach {
		lv.reach[i] = []int32{int32(i)}
	}
	return lv
}

func (lv *level) at(node, pred int) *mrra {
	return &lv.def[node*lv.nPred+pred]
}

func (lv *level) define(node, pred int, def mrra) {
	d := lv.at(node, pred)
	if !d.defined {
		lv.defCount++
	}
	*d = def
}

func (lv *level) undefine(node, pred int) {
	d := lv.at(node, pred)
	if d.defined {
		d.defined = false
		lv.defCount--
	}
}

// live reports whether node still has descendants in the front.
func (lv *level) live(node int) bool {
	return lv.reach[node] != nil
}

// efficiency is the fraction of the level's definitions still pending.
func (lv *level) efficiency() float64 {
	if lv.nNode == 0 {
		return 0
	}
	return float64(lv.defCount) / float64(lv.nNode*lv.nPred)
}

/*
advance re-expresses reach in terms of the next front, doubling every
table. succ gives the next-front index of the left or right successor of a
current front node, -1 when extinct. Nodes left without live descendants
have their definitions purged.
*/
func (lv *level) advance(succ func(front int32, isLeft bool) int32) {
	for node, r := range lv.reach {
		if r == nil {
			continue
		}
		next := make([]int32, 2*len(r))
		live := false
		for slot, f := range r {
			l, rt := int32(-1), int32(-1)
			if f >= 0 {
				l, rt = succ(f, true), succ(f, false)
			}
			next[slot<<1], next[slot<<1|1] = l, rt
			live = live || l >= 0 || rt >= 0
		}
		if !live {
			lv.reach[node] = nil
			for pred := 0; pred < lv.nPred; pred++ {
				lv.undefine(node, pred)
			}
			continue
		}
		lv.reach[node] = next
	}
}
