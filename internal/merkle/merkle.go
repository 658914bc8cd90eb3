// Package merkle builds order-independent keccak256 Merkle trees over audit log entries
// and produces and verifies inclusion proofs against them.
//
// Leaves are sorted before construction and every parent hashes the smaller child first,
// so the root depends only on the set of leaves and a verifier needs no positional data.
package merkle

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"trustcore/internal/audit"
)

const HashSize = 32

type Hash [HashSize]byte

// EmptyRoot is keccak256 of the empty byte string, the root of a tree without leaves.
var EmptyRoot = Keccak256(nil)

func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf("invalid hash %q: want %d bytes, got %d", s, HashSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HashPair hashes two nodes smaller-first.
func HashPair(a, b Hash) Hash {
	if b.Less(a) {
		a, b = b, a
	}
	return Keccak256(a[:], b[:])
}

// CanonicalLeafJSON renders the fields of an entry that are committed to a leaf, in fixed order,
// with the timestamp as UTC ISO-8601 at millisecond precision.
func CanonicalLeafJSON(entry audit.Entry) ([]byte, error) {
	leaf := struct {
		ID         string                 `json:"id"`
		EntityType string                 `json:"entityType"`
		EntityID   string                 `json:"entityId"`
		Action     string                 `json:"action"`
		Actor      string                 `json:"actor"`
		Meta       map[string]interface{} `json:"meta"`
		CreatedAt  string                 `json:"createdAt"`
	}{
		ID:         entry.ID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Actor:      entry.Actor,
		Meta:       entry.Meta,
		CreatedAt:  entry.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(leaf); err != nil {
		return nil, fmt.Errorf("failed to encode leaf %s: %w", entry.ID, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func HashLeaf(entry audit.Entry) (Hash, error) {
	data, err := CanonicalLeafJSON(entry)
	if err != nil {
		return Hash{}, err
	}
	return Keccak256(data), nil
}

type Tree struct {
	Root   Hash
	Leaves []Hash   // sorted ascending
	Layers [][]Hash // Layers[0] == Leaves, last layer == [Root]
}

// BuildTree sorts the leaves and pairs adjacent nodes layer by layer. An odd trailing node
// is promoted to the next layer unchanged.
func BuildTree(leaves []Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{
			Root:   EmptyRoot,
			Leaves: []Hash{},
			Layers: [][]Hash{{EmptyRoot}},
		}
	}

	sorted := make([]Hash, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	layers := [][]Hash{sorted}
	current := sorted
	for len(current) > 1 {
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, HashPair(current[i], current[i+1]))
		}
		layers = append(layers, next)
		current = next
	}

	return &Tree{
		Root:   current[0],
		Leaves: sorted,
		Layers: layers,
	}
}

func (t *Tree) indexOf(leaf Hash) int {
	i := sort.Search(len(t.Leaves), func(i int) bool { return !t.Leaves[i].Less(leaf) })
	if i < len(t.Leaves) && t.Leaves[i] == leaf {
		return i
	}
	return -1
}

func (t *Tree) Contains(leaf Hash) bool {
	return t.indexOf(leaf) >= 0
}

type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

type Proof struct {
	Leaf      Hash       `json:"leaf"`
	Proof     []Hash     `json:"proof"`
	Positions []Position `json:"positions"`
	Root      Hash       `json:"root"`
}

// GenerateProof returns nil when leaf is not part of the tree.
func GenerateProof(tree *Tree, leaf Hash) *Proof {
	if tree == nil {
		return nil
	}
	idx := tree.indexOf(leaf)
	if idx < 0 {
		return nil
	}

	proof := &Proof{
		Leaf:      leaf,
		Proof:     []Hash{},
		Positions: []Position{},
		Root:      tree.Root,
	}

	for level := 0; level < len(tree.Layers)-1; level++ {
		layer := tree.Layers[level]
		sibling := idx ^ 1
		if sibling < len(layer) {
			position := Right
			if layer[sibling].Less(layer[idx]) {
				position = Left
			}
			proof.Proof = append(proof.Proof, layer[sibling])
			proof.Positions = append(proof.Positions, position)
		}
		idx /= 2
	}

	return proof
}

// VerifyProof recomputes the path with the same smaller-first rule used by BuildTree.
// Positions are informational; the ordering rule alone determines each parent.
func VerifyProof(proof Proof) bool {
	current := proof.Leaf
	for _, sibling := range proof.Proof {
		current = HashPair(current, sibling)
	}
	return current == proof.Root
}
