package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/anchoring"
	"trustcore/internal/merkle"
)

func sampleProof(t *testing.T) merkle.Proof {
	t.Helper()
	leaves := []merkle.Hash{
		merkle.Keccak256([]byte("a")),
		merkle.Keccak256([]byte("b")),
		merkle.Keccak256([]byte("c")),
	}
	tree := merkle.BuildTree(leaves)
	proof := merkle.GenerateProof(tree, leaves[1])
	require.NotNil(t, proof)
	return *proof
}

func TestDecodeProof(t *testing.T) {
	proof := sampleProof(t)

	bare, err := json.Marshal(proof)
	require.NoError(t, err)
	wrapped, err := json.Marshal(anchoring.LogProof{LogID: "log-1", BatchID: "b-1", Proof: proof})
	require.NoError(t, err)

	for name, data := range map[string][]byte{"bare": bare, "endpoint response": wrapped} {
		t.Run(name, func(t *testing.T) {
			decoded, err := decodeProof(data)
			require.NoError(t, err)
			assert.Equal(t, proof.Root, decoded.Root)
			assert.True(t, merkle.VerifyProof(decoded))
		})
	}

	_, err = decodeProof([]byte(`{"leaf":"zz"}`))
	assert.Error(t, err)
}
