package features

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chessnnue/nnue769/internal/domain"
	"github.com/chessnnue/nnue769/internal/rules"
)

var testFens = []string{
	rules.InitialPositionFen,
	"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R b KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"4k3/8/8/8/8/8/8/4K3 b - - 0 1",
}

func newEncoder(t *testing.T, name string) *Encoder {
	var e, err = rules.New(name)
	if err != nil {
		t.Fatal(err)
	}
	return NewEncoder(e)
}

func countOnes(v []float64) (ones, others int) {
	for _, x := range v[:domain.PieceInputs] {
		if x == 1 {
			ones++
		} else if x != 0 {
			others++
		}
	}
	return
}

func TestInitialPosition(t *testing.T) {
	var input, err = newEncoder(t, rules.NotnilEngineName).Encode(rules.InitialPositionFen)
	if err != nil {
		t.Fatal(err)
	}
	var v = Dense(input)
	if len(v) != 769 {
		t.Fatalf("len = %v, want 769", len(v))
	}
	if ones, others := countOnes(v); ones != 32 || others != 0 {
		t.Errorf("ones = %v others = %v, want 32 and 0", ones, others)
	}
	if v[768] != 1 {
		t.Errorf("side to move = %v, want 1", v[768])
	}
	// white rook a1, white pawn a2, black king e8
	for _, index := range []int{0*12 + 3, 8*12 + 0, 60*12 + 6 + 5} {
		if v[index] != 1 {
			t.Errorf("v[%v] = %v, want 1", index, v[index])
		}
	}
}

func TestLoneKings(t *testing.T) {
	var input, err = newEncoder(t, rules.NotnilEngineName).Encode("8/8/3k4/8/8/4K3/8/8 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	var v = Dense(input)
	if ones, _ := countOnes(v); ones != 2 {
		t.Errorf("ones = %v, want 2", ones)
	}
	if v[768] != 0 {
		t.Errorf("side to move = %v, want 0", v[768])
	}
	if v[20*12+5] != 1 || v[43*12+6+5] != 1 {
		t.Error("king indices are wrong")
	}
}

func TestPieceCountAndSide(t *testing.T) {
	var e = newEncoder(t, rules.NotnilEngineName)
	for _, fen := range testFens {
		var pos, err = e.rules.Parse(fen)
		if err != nil {
			t.Fatal(err)
		}
		var v = Dense(FromPosition(pos))
		if ones, others := countOnes(v); ones != rules.CountPieces(pos) || others != 0 {
			t.Errorf("%v: ones = %v, pieces = %v", fen, ones, rules.CountPieces(pos))
		}
		var want float64
		if pos.WhiteToMove() {
			want = 1
		}
		if v[768] != want {
			t.Errorf("%v: side to move = %v, want %v", fen, v[768], want)
		}
	}
}

func TestDeterministic(t *testing.T) {
	var e = newEncoder(t, rules.NotnilEngineName)
	for _, fen := range testFens {
		var a, err1 = e.Encode(fen)
		var b, err2 = e.Encode(fen)
		if err1 != nil || err2 != nil {
			t.Fatal(err1, err2)
		}
		if !reflect.DeepEqual(Dense(a), Dense(b)) {
			t.Errorf("%v: encoding is not deterministic", fen)
		}
	}
}

func TestEnginesAgree(t *testing.T) {
	var notnil = newEncoder(t, rules.NotnilEngineName)
	var dragontooth = newEncoder(t, rules.DragontoothEngineName)
	for _, fen := range testFens {
		var a, err1 = notnil.Encode(fen)
		var b, err2 = dragontooth.Encode(fen)
		if err1 != nil || err2 != nil {
			t.Fatal(err1, err2)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%v: notnil %v dragontooth %v", fen, a, b)
		}
	}
}

func TestInvalidPosition(t *testing.T) {
	var _, err = newEncoder(t, rules.NotnilEngineName).Encode("rnbqkbnr/pppppppp/8/8 w")
	var target *domain.InvalidPositionError
	if !errors.As(err, &target) {
		t.Errorf("error = %v, want InvalidPositionError", err)
	}
}
