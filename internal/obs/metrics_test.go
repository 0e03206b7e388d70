package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/roles/01ARZ3":              "/v1/roles/:id",
		"/v1/roles/01ARZ3/permissions":  "/v1/roles/:id/permissions",
		"/v1/users/u-77/assignments":    "/v1/users/:id/assignments",
		"/v1/access/check":              "/v1/access/check",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/roles?limit=10":            "/v1/roles",
		"/v1/roles/abc/extra/deep/path": "/v1/roles/abc/extra/deep/path",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
