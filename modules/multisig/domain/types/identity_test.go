package types

import "testing"

func TestNormalizeIdentity(t *testing.T) {
	cases := map[string]Identity{
		"":           "",
		"  0xABcd  ": "0xabcd",
		"0XFF":       "0xff",
		"0x":         "0x",
		"treasury":   "treasury",
		" Treasury ": "Treasury",
	}
	for raw, want := range cases {
		if got := NormalizeIdentity(raw); got != want {
			t.Fatalf("NormalizeIdentity(%q)=%q want %q", raw, got, want)
		}
	}
}

func TestIdentity_IsZero(t *testing.T) {
	cases := map[Identity]bool{
		"":         true,
		"   ":      true,
		"0x":       true,
		"0x0":      true,
		"0X0000":   true,
		"0x0001":   false,
		"0":        false,
		"treasury": false,
	}
	for id, want := range cases {
		if got := id.IsZero(); got != want {
			t.Fatalf("%q.IsZero()=%v want %v", id, got, want)
		}
	}
}

func TestAction_Clone(t *testing.T) {
	a := Action{ID: 1, Payload: []byte{1}, Approvals: []Identity{"0xb1"}}
	b := a.Clone()
	b.Payload[0] = 9
	b.Approvals[0] = "0xff"
	if a.Payload[0] != 1 || a.Approvals[0] != "0xb1" {
		t.Fatalf("clone aliased: %+v", a)
	}
	if !a.HasApproved("0xb1") || a.HasApproved("0xff") || a.ApprovalCount() != 1 {
		t.Fatalf("approvals=%v", a.Approvals)
	}
}
