package pyramid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// stateDigest summarizes the full engine state for determinism checks
// and tick logs. Everything that affects game semantics is included;
// transport state (clients, resume tokens, pending events) is not.
func (nw *Network) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteString(h, &tmp, nw.cfg.ID)
	digestWriteString(h, &tmp, nw.rootID)
	digestWriteString(h, &tmp, nw.playerNodeID)
	digestWriteU64(h, &tmp, uint64(len(nw.nodes)))

	ids := make([]string, 0, len(nw.nodes))
	for id := range nw.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := nw.nodes[id]
		digestWriteString(h, &tmp, n.ID)
		digestWriteString(h, &tmp, n.Name)
		digestWriteU64(h, &tmp, uint64(n.Level))
		digestWriteString(h, &tmp, n.ParentID)
		digestWriteU64(h, &tmp, uint64(len(n.ChildIDs)))
		for _, cid := range n.ChildIDs {
			digestWriteString(h, &tmp, cid)
		}
		digestWriteI64(h, &tmp, n.Money)
		digestWriteU64(h, &tmp, uint64(n.Recruits))
		digestWriteString(h, &tmp, string(n.Controller))
		digestWriteI64(h, &tmp, n.InvestmentsReceived)
		digestWriteU64(h, &tmp, n.CoupCooldownUntil)

		stakes := n.StakeList()
		digestWriteU64(h, &tmp, uint64(len(stakes)))
		for _, s := range stakes {
			digestWriteString(h, &tmp, s.InvestorID)
			digestWriteI64(h, &tmp, s.Amount)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteString(h hash.Hash, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}
