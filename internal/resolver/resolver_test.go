package resolver

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"http://user-service/api/users":         "user-service",
		"https://user-service:8080/api":         "user-service",
		"user-service.svc.cluster.local":        "user-service",
		"user-service.default.svc":              "user-service",
		"user-service:8080":                     "user-service",
		"  User-Service  ":                      "user-service",
		"redis://cache:6379/0":                  "cache",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveExactMatch(t *testing.T) {
	r := NewResolver([]string{"user-service", "order-service"})
	result := r.Resolve("http://user-service/api/users")
	if !result.Resolved || result.Service != "user-service" || result.Confidence != 1.0 {
		t.Fatalf("Resolve() = %+v, want exact match on user-service", result)
	}
}

func TestResolveNeverFabricatesBelowThreshold(t *testing.T) {
	r := NewResolver([]string{"user-service"})
	result := r.Resolve("completely-unrelated-host")
	if result.Resolved {
		t.Fatalf("Resolve() resolved an unrelated target: %+v", result)
	}
}

func TestResolvePrefixSimilarityFloor(t *testing.T) {
	r := NewResolver([]string{"user-service-v2-long-suffix"})
	result := r.Resolve("user")
	if !result.Resolved {
		t.Fatal("expected a prefix match")
	}
	if result.Confidence < 0.6 {
		t.Fatalf("prefix match confidence = %v, want >= 0.6", result.Confidence)
	}
}

func TestResolveJaccardWordOverlap(t *testing.T) {
	r := NewResolver([]string{"user_account_service"})
	result := r.Resolve("service_account")
	if !result.Resolved {
		t.Fatal("expected a jaccard word-overlap match")
	}
}

func TestResolveNeverResolvesEmpty(t *testing.T) {
	r := NewResolver([]string{"user-service"})
	if r.Resolve("").Resolved {
		t.Fatal("empty target must never resolve")
	}
}
