/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.3.0", -1},
		{"v2.0.0", "1.9.9", 1},
		{"1.2", "1.2.1", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/"+GitHubRepo+"/releases/latest" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.test/r"}`))
	}))
	defer srv.Close()

	c := &Checker{BaseURL: srv.URL, Client: srv.Client()}
	info, err := c.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if info.LatestVersion != "99.0.0" || !info.UpdateAvailable {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestLatestBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := &Checker{BaseURL: srv.URL, Client: srv.Client()}
	if _, err := c.Latest(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
}
