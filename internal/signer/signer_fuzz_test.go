package signer

import (
	"testing"
)

func FuzzSignVerify(f *testing.F) {
	f.Add("secret", []byte(`["abc"]`))
	f.Add("k", []byte{})
	f.Add("\x00\xff", []byte{0, 1, 2})

	f.Fuzz(func(t *testing.T, secret string, data []byte) {
		s, err := New(secret)
		if secret == "" {
			if err == nil {
				t.Fatal("expected error for empty secret")
			}
			return
		}
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		sig := s.Sign(data)
		if !s.Verify(sig, data) {
			t.Fatalf("signature did not verify")
		}
		if len(data) > 0 {
			mutated := append([]byte(nil), data...)
			mutated[0] ^= 0x01
			if s.Verify(sig, mutated) {
				t.Fatalf("mutated data verified")
			}
		}
	})
}

func FuzzVerifyNeverPanics(f *testing.F) {
	f.Add("", []byte("x"))
	f.Add("zz", []byte("x"))
	f.Add("0123456789abcdef", []byte(nil))

	s, err := New("secret")
	if err != nil {
		f.Fatal(err)
	}
	f.Fuzz(func(t *testing.T, sig string, data []byte) {
		_ = s.Verify(sig, data)
	})
}
