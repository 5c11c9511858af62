package kmall

import (
	"bytes"
	"math"
	"strconv"
)

// Grid is a row major matrix of samples. Cells without data hold NaN.
type Grid struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewGrid returns a rows x cols grid filled with NaN.
func NewGrid(rows, cols int) Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	g := Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
	for i := range g.Data {
		g.Data[i] = math.NaN()
	}
	return g
}

func (g Grid) At(r, c int) float64 {
	return g.Data[r*g.Cols+c]
}

func (g Grid) Set(r, c int, v float64) {
	g.Data[r*g.Cols+c] = v
}

// Row returns row r sharing the grid storage.
func (g Grid) Row(r int) []float64 {
	return g.Data[r*g.Cols : (r+1)*g.Cols]
}

// MarshalJSON writes the grid as nested rows with null for NaN cells.
func (g Grid) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"rows":`)
	buf.WriteString(strconv.Itoa(g.Rows))
	buf.WriteString(`,"cols":`)
	buf.WriteString(strconv.Itoa(g.Cols))
	buf.WriteString(`,"data":[`)
	for r := 0; r < g.Rows; r++ {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.Write(appendFloats(nil, g.Row(r)))
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// Floats is a float vector that encodes NaN and infinities as JSON null.
type Floats []float64

func (f Floats) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return appendFloats(nil, f), nil
}

func appendFloats(dst []byte, vs []float64) []byte {
	dst = append(dst, '[')
	for i, v := range vs {
		if i > 0 {
			dst = append(dst, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dst = append(dst, "null"...)
			continue
		}
		dst = strconv.AppendFloat(dst, v, 'g', -1, 64)
	}
	return append(dst, ']')
}
