package adapter

import (
	"reflect"
	"testing"
)

func TestConvertToSiteURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare domain", "example.com", "sc-domain:example.com"},
		{"https without slash", "https://example.com", "https://example.com/"},
		{"https with slash", "https://example.com/", "https://example.com/"},
		{"http without slash", "http://example.com", "http://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertToSiteURL(tt.input); got != tt.want {
				t.Errorf("ConvertToSiteURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConvertToSCDomain(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/", "sc-domain:example.com"},
		{"http://example.com/", "sc-domain:example.com"},
		{"https://example.com", "sc-domain:example.com"},
	}

	for _, tt := range tests {
		if got := ConvertToSCDomain(tt.input); got != tt.want {
			t.Errorf("ConvertToSCDomain(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSiteURLVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "bare domain",
			input: "example.com",
			want:  []string{"https://example.com/", "http://example.com/", "sc-domain:example.com"},
		},
		{
			name:  "https site URL",
			input: "https://example.com/",
			want:  []string{"https://example.com/", "http://example.com/", "sc-domain:example.com"},
		},
		{
			name:  "http site URL",
			input: "http://example.com/",
			want:  []string{"http://example.com/", "https://example.com/", "sc-domain:example.com"},
		},
		{
			name:  "sc-domain property",
			input: "sc-domain:example.com",
			want:  []string{"sc-domain:example.com", "http://example.com/", "https://example.com/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := siteURLVariants(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("siteURLVariants(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeCustomURLs(t *testing.T) {
	tests := []struct {
		name    string
		siteURL string
		urls    []string
		want    []string
	}{
		{
			name:    "relative paths join the domain",
			siteURL: "https://example.com/",
			urls:    []string{"/about", "/blog/post"},
			want:    []string{"https://example.com/about", "https://example.com/blog/post"},
		},
		{
			name:    "full URLs pass through",
			siteURL: "https://example.com/",
			urls:    []string{"https://example.com/page", "http://other.com/x"},
			want:    []string{"https://example.com/page", "http://other.com/x"},
		},
		{
			name:    "domain-prefixed URLs get the protocol",
			siteURL: "https://example.com/",
			urls:    []string{"example.com/page"},
			want:    []string{"https://example.com/page"},
		},
		{
			name:    "bare paths join with a slash",
			siteURL: "https://example.com/",
			urls:    []string{"about"},
			want:    []string{"https://example.com/about"},
		},
		{
			name:    "http site keeps http protocol",
			siteURL: "http://example.com/",
			urls:    []string{"/about"},
			want:    []string{"http://example.com/about"},
		},
		{
			name:    "sc-domain site defaults to https",
			siteURL: "sc-domain:example.com",
			urls:    []string{"/about"},
			want:    []string{"https://example.com/about"},
		},
		{
			name:    "blank entries are dropped",
			siteURL: "https://example.com/",
			urls:    []string{"", "  ", "/about"},
			want:    []string{"https://example.com/about"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCustomURLs(tt.siteURL, tt.urls); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeCustomURLs(%q, %v) = %v, want %v", tt.siteURL, tt.urls, got, tt.want)
			}
		})
	}
}
