package page

import "testing"

func TestResetClearsState(t *testing.T) {
	p := New(1)
	p.Data[0] = 0xAB
	p.PinCount = 3
	p.IsDirty = true

	p.Reset(2)

	if p.ID != 2 {
		t.Fatalf("ID after Reset = %d, want 2", p.ID)
	}
	if p.Data[0] != 0 {
		t.Fatalf("Data not cleared after Reset")
	}
	if p.PinCount != 0 {
		t.Fatalf("PinCount after Reset = %d, want 0", p.PinCount)
	}
	if p.IsDirty {
		t.Fatalf("IsDirty after Reset = true, want false")
	}
}
