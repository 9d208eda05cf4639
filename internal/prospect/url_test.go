package prospect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.linkedin.com/in/ana-silva/", "https://www.linkedin.com/in/ana-silva"},
		{"https://www.linkedin.com/in/ana-silva?miniProfileUrn=urn%3Ali", "https://www.linkedin.com/in/ana-silva"},
		{"https://www.linkedin.com/in/ana-silva/?trk=abc#about", "https://www.linkedin.com/in/ana-silva"},
		{"https://WWW.LinkedIn.com/in/ana-silva", "https://www.linkedin.com/in/ana-silva"},
		{"/in/ana-silva/", "https://www.linkedin.com/in/ana-silva"},
		{"  https://www.linkedin.com/in/bo  ", "https://www.linkedin.com/in/bo"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in, ""))
		})
	}
}

func TestNormalizeURL_TrackingVariantsCollapse(t *testing.T) {
	variants := []string{
		"https://www.linkedin.com/in/jdoe",
		"https://www.linkedin.com/in/jdoe/",
		"https://www.linkedin.com/in/jdoe?trk=people-search",
		"https://www.linkedin.com/in/jdoe?lipi=x&trk=y#experience",
		"https://www.linkedin.com/in/jdoe#top",
	}
	want := NormalizeURL(variants[0], "")
	for _, v := range variants {
		got := NormalizeURL(v, "")
		assert.Equal(t, want, got, v)
		assert.Equal(t, got, NormalizeURL(got, ""), "normalizing twice must be stable")
	}
}

func TestNormalizeURL_CustomBase(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/in/x", NormalizeURL("/in/x?a=1", "http://localhost:8080/"))
}

func TestIsProfileURL(t *testing.T) {
	assert.True(t, IsProfileURL("https://www.linkedin.com/in/x"))
	assert.False(t, IsProfileURL("https://www.linkedin.com/company/x"))
}
