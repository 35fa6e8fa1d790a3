// Package board implements the board-side encodings the network consumes:
// the 18-plane input tensor derived from a FEN position, and the fixed table
// of UCI move labels that defines the policy output space.
package board

import (
	"sync"
)

const (
	// NumPlanes of the input tensor: 12 piece planes, 4 castling planes,
	// the fifty-move counter plane and the en-passant plane.
	NumPlanes = 18

	// Size of the board along each spatial axis.
	Size = 8
)

var files = []byte("abcdefgh")
var ranks = []byte("12345678")

// knightJumps are the 8 knight displacements in (file, rank) deltas.
var knightJumps = [8][2]int{{-2, -1}, {-1, -2}, {-2, 1}, {1, -2}, {2, -1}, {-1, 2}, {2, 1}, {1, 2}}

// promotionPieces in label order.
var promotionPieces = []byte("qrbn")

// MoveLabels returns the full UCI move-label table: every queen-like and
// knight move between two distinct on-board squares, in file-major origin
// order, followed by all promotion moves (straight and capturing) for both
// sides. Its length is the default policy width (1968).
//
// The slice is built once and shared: callers must not mutate it.
var MoveLabels = sync.OnceValue(func() []string {
	var labels []string
	for f1 := 0; f1 < Size; f1++ {
		for r1 := 0; r1 < Size; r1++ {
			var destinations [][2]int
			for t := 0; t < Size; t++ {
				destinations = append(destinations, [2]int{t, r1})
			}
			for t := 0; t < Size; t++ {
				destinations = append(destinations, [2]int{f1, t})
			}
			for t := -(Size - 1); t < Size; t++ {
				destinations = append(destinations, [2]int{f1 + t, r1 + t})
			}
			for t := -(Size - 1); t < Size; t++ {
				destinations = append(destinations, [2]int{f1 + t, r1 - t})
			}
			for _, jump := range knightJumps {
				destinations = append(destinations, [2]int{f1 + jump[0], r1 + jump[1]})
			}
			for _, dst := range destinations {
				f2, r2 := dst[0], dst[1]
				if f2 < 0 || f2 >= Size || r2 < 0 || r2 >= Size {
					continue
				}
				if f1 == f2 && r1 == r2 {
					continue
				}
				labels = append(labels, string([]byte{files[f1], ranks[r1], files[f2], ranks[r2]}))
			}
		}
	}

	// Promotions: straight pushes plus captures to the adjacent files, for
	// white (rank 7 to 8) and black (rank 2 to 1).
	for f1 := 0; f1 < Size; f1++ {
		for _, piece := range promotionPieces {
			targets := [][2]int{{f1, f1}}
			if f1 > 0 {
				targets = append(targets, [2]int{f1, f1 - 1})
			}
			if f1 < Size-1 {
				targets = append(targets, [2]int{f1, f1 + 1})
			}
			for _, t := range targets {
				labels = append(labels,
					string([]byte{files[t[0]], '2', files[t[1]], '1', piece}),
					string([]byte{files[t[0]], '7', files[t[1]], '8', piece}))
			}
		}
	}
	return labels
})

// MoveLabelIndex maps each UCI move label to its position in MoveLabels.
var MoveLabelIndex = sync.OnceValue(func() map[string]int {
	labels := MoveLabels()
	index := make(map[string]int, len(labels))
	for ii, label := range labels {
		index[label] = ii
	}
	return index
})
