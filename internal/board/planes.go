package board

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// pieceOrder indexes the 12 piece planes: white pieces first, then black.
const pieceOrder = "KQRBNPkqrbnp"

// Planes converts a FEN position into the network's input tensor: NumPlanes
// channel-first 8×8 planes, flattened row-major, with row 0 holding rank 8.
//
// The position is canonicalized to the side to move: when black is to move
// the board is flipped vertically and piece colors are swapped, so the
// network always sees the position from the mover's point of view.
func Planes(fen string) ([]float32, error) {
	fields := strings.Fields(fen)
	if len(fields) < 5 {
		return nil, errors.Errorf("invalid FEN %q: expected at least 5 fields, got %d", fen, len(fields))
	}
	if len(fields) > 1 && fields[1] == "b" {
		fields = flipFields(fields)
	}

	planes := make([]float32, NumPlanes*Size*Size)
	plane := func(p int) []float32 { return planes[p*Size*Size : (p+1)*Size*Size] }

	// Piece planes.
	rows := strings.Split(fields[0], "/")
	if len(rows) != Size {
		return nil, errors.Errorf("invalid FEN %q: expected %d board rows, got %d", fen, Size, len(rows))
	}
	for row, rowStr := range rows {
		col := 0
		for _, c := range rowStr {
			if c >= '1' && c <= '8' {
				col += int(c - '0')
				continue
			}
			pieceIdx := strings.IndexRune(pieceOrder, c)
			if pieceIdx < 0 || col >= Size {
				return nil, errors.Errorf("invalid FEN %q: bad piece placement in row %q", fen, rowStr)
			}
			plane(pieceIdx)[row*Size+col] = 1
			col++
		}
		if col != Size {
			return nil, errors.Errorf("invalid FEN %q: row %q covers %d columns", fen, rowStr, col)
		}
	}

	// Castling planes, in KQkq order.
	for ii, right := range []string{"K", "Q", "k", "q"} {
		if strings.Contains(fields[2], right) {
			fill(plane(12+ii), 1)
		}
	}

	// Fifty-move counter plane: filled with the raw halfmove clock.
	fiftyCount, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid FEN %q: bad halfmove clock", fen)
	}
	fill(plane(16), float32(fiftyCount))

	// En-passant plane.
	if fields[3] != "-" {
		ep := fields[3]
		if len(ep) != 2 || ep[0] < 'a' || ep[0] > 'h' || ep[1] < '1' || ep[1] > '8' {
			return nil, errors.Errorf("invalid FEN %q: bad en-passant square %q", fen, ep)
		}
		row := Size - int(ep[1]-'0')
		col := int(ep[0] - 'a')
		plane(17)[row*Size+col] = 1
	}

	return planes, nil
}

// flipFields mirrors the position for the side to move: board rows reversed
// with piece case swapped, castling rights case-swapped and sorted. The
// en-passant square and the move counters are carried over as-is.
func flipFields(fields []string) []string {
	rows := strings.Split(fields[0], "/")
	flipped := make([]string, len(rows))
	for ii, row := range rows {
		flipped[len(rows)-1-ii] = swapCase(row)
	}

	castling := []byte(swapCase(fields[2]))
	if fields[2] != "-" {
		sortBytes(castling)
	}

	out := append([]string{}, fields...)
	out[0] = strings.Join(flipped, "/")
	out[1] = "w"
	out[2] = string(castling)
	return out
}

func swapCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
			sb.WriteRune(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z':
			sb.WriteRune(c - 'A' + 'a')
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

func sortBytes(b []byte) {
	for ii := 1; ii < len(b); ii++ {
		for jj := ii; jj > 0 && b[jj] < b[jj-1]; jj-- {
			b[jj], b[jj-1] = b[jj-1], b[jj]
		}
	}
}

func fill(dst []float32, value float32) {
	for ii := range dst {
		dst[ii] = value
	}
}
