package shield

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// cacheKey hashes every field that can change a scan's outcome, including
// the pin store generation. Each field is length-prefixed so no two
// different requests share an encoding.
func cacheKey(input, preset string, pinGen uint64, sc scanner.ScanContext) string {
	h := sha256.New()
	writeField(h, input)
	writeField(h, preset)
	h.Write(binary.BigEndian.AppendUint64(nil, pinGen))
	writeField(h, sc.AgentID)

	tools := make([]string, 0, len(sc.Tools))
	for _, t := range sc.Tools {
		args := sha256.Sum256(t.Arguments)
		tools = append(tools, t.Name+"\x00"+t.ServerID+"\x00"+hex.EncodeToString(args[:]))
	}
	sort.Strings(tools)
	writeCount(h, len(tools))
	for _, t := range tools {
		writeField(h, t)
	}

	servers := make([]string, 0, len(sc.Manifests))
	for s := range sc.Manifests {
		servers = append(servers, s)
	}
	sort.Strings(servers)
	writeCount(h, len(servers))
	for _, s := range servers {
		writeField(h, s)
		names := append([]string(nil), sc.Manifests[s]...)
		sort.Strings(names)
		writeCount(h, len(names))
		for _, n := range names {
			writeField(h, n)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	writeCount(h, len(s))
	h.Write([]byte(s))
}

func writeCount(h hash.Hash, n int) {
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(n)))
}
