package utils

import "testing"

func TestMaskSignature(t *testing.T) {
	cases := map[string]string{
		"abc1-0000-0000-z9kk": "abc1***z9kk",
		"abcdefghi":           "abcd***fghi",
		"abcdefgh":            "***",
		"":                    "***",
		"ééééxyzàààà":         "éééé***àààà",
	}
	for in, want := range cases {
		if got := MaskSignature(in); got != want {
			t.Fatalf("MaskSignature(%q) = %q, want %q", in, got, want)
		}
	}
}
