package codec

import "testing"

func TestWordsFor(t *testing.T) {
	cases := map[DataType]int{
		U16: 1, S16: 1,
		U32: 2, S32: 2,
		U64: 4, S64: 4,
	}
	for dtype, want := range cases {
		got, err := WordsFor(dtype)
		if err != nil {
			t.Fatalf("WordsFor(%s): unexpected error: %v", dtype, err)
		}
		if got != want {
			t.Errorf("WordsFor(%s) = %d, want %d", dtype, got, want)
		}
	}

	if _, err := WordsFor("BOGUS"); err == nil {
		t.Errorf("WordsFor(BOGUS) should have failed")
	}
}

func TestDecodeZeroWordsEveryScaling(t *testing.T) {
	scalings := []Scaling{FIX0, FIX1, FIX2, FIX3, TEMP}
	for _, dtype := range []DataType{U16, S16, U32, S32, U64, S64} {
		n, _ := WordsFor(dtype)
		words := make([]uint16, n)
		for _, sc := range scalings {
			got, err := Decode(dtype, words, sc)
			if err != nil {
				t.Fatalf("Decode(%s, zero, %s): unexpected error: %v", dtype, sc, err)
			}
			switch v := got.(type) {
			case int64:
				if v != 0 {
					t.Errorf("Decode(%s, zero, %s) = %v, want 0", dtype, sc, v)
				}
			case uint64:
				if v != 0 {
					t.Errorf("Decode(%s, zero, %s) = %v, want 0", dtype, sc, v)
				}
			case float64:
				if v != 0 {
					t.Errorf("Decode(%s, zero, %s) = %v, want 0", dtype, sc, v)
				}
			default:
				t.Errorf("Decode(%s, zero, %s) returned unexpected type %T", dtype, sc, got)
			}
		}
	}
}

func TestDecodeSignedNegative(t *testing.T) {
	// -1 as S16: 0xFFFF
	got, err := Decode(S16, []uint16{0xFFFF}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int64) != -1 {
		t.Errorf("got %v, want -1", got)
	}

	// -1 as S32: 0xFFFFFFFF
	got, err = Decode(S32, []uint16{0xFFFF, 0xFFFF}, FIX1)
	if err != nil {
		t.Fatal(err)
	}
	if got.(float64) != -0.1 {
		t.Errorf("got %v, want -0.1", got)
	}
}

func TestDecodeTagList(t *testing.T) {
	tags := TagList{0: "off", 1: "on"}
	got, err := Decode(U16, []uint16{1}, tags)
	if err != nil {
		t.Fatal(err)
	}
	if got != "on" {
		t.Errorf("got %v, want on", got)
	}

	if _, err := Decode(U16, []uint16{7}, tags); err == nil {
		t.Errorf("expected error for unmapped tag value")
	}
}

func TestEncodeDecodeS32RoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 2147483647, -2147483648, 12345, -12345}
	for _, x := range cases {
		words := EncodeS32(x)
		got := DecodeS32(words)
		if got != x {
			t.Errorf("round trip failed for %d: got %d", x, got)
		}
	}
}
