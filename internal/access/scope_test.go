package access

import "testing"

func int64Ptr(v int64) *int64 { return &v }

func TestOwnsUserResource(t *testing.T) {
	p := Profile{Identity: "user-1"}
	if !OwnsUserResource(p, "user-1") {
		t.Fatalf("owner denied")
	}
	if OwnsUserResource(p, "user-2") {
		t.Fatalf("stranger allowed")
	}
	if OwnsUserResource(p, "") {
		t.Fatalf("empty owner key allowed")
	}
	if OwnsUserResource(Profile{}, "user-1") {
		t.Fatalf("empty identity allowed")
	}
}

func TestOwnsOrgResource(t *testing.T) {
	bound := Profile{Identity: "user-1", OrgID: int64Ptr(42)}
	unbound := Profile{Identity: "user-1"}

	if !OwnsOrgResource(bound, int64Ptr(42)) {
		t.Fatalf("matching org denied")
	}
	if OwnsOrgResource(bound, int64Ptr(7)) {
		t.Fatalf("foreign org allowed")
	}
	// A null organization id on either side must deny, never allow.
	if OwnsOrgResource(bound, nil) {
		t.Fatalf("unowned resource allowed")
	}
	if OwnsOrgResource(unbound, int64Ptr(42)) {
		t.Fatalf("unbound profile allowed")
	}
	if OwnsOrgResource(unbound, nil) {
		t.Fatalf("double-null compared equal")
	}
}

func TestOwnsRideDecision(t *testing.T) {
	p := Profile{Identity: "driver-9"}
	if !OwnsRideDecision(p, "driver-9") {
		t.Fatalf("assigned driver denied")
	}
	if OwnsRideDecision(p, "driver-4") {
		t.Fatalf("other driver allowed")
	}
}
