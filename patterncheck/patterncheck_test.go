package patterncheck

import "testing"

func TestVerifyAgreesWithCorrectLength(t *testing.T) {
	site := []byte{0x53, 0x90, 0x90, 0x90} // push rbx, length 1
	agrees, detail := Verify(site, 1)
	if !agrees || detail != "" {
		t.Fatalf("Verify = %v,%q, want true,\"\"", agrees, detail)
	}
}

func TestVerifyDisagreesWithWrongLength(t *testing.T) {
	site := []byte{0x53, 0x90, 0x90, 0x90} // push rbx, length 1
	agrees, detail := Verify(site, 5)
	if agrees || detail == "" {
		t.Fatalf("Verify = %v,%q, want false,<non-empty>", agrees, detail)
	}
}

func TestVerifyUndecodableIsNotActionable(t *testing.T) {
	agrees, detail := Verify(nil, 99)
	if !agrees || detail != "" {
		t.Fatalf("Verify on empty input = %v,%q, want true,\"\" (not actionable)", agrees, detail)
	}
}
