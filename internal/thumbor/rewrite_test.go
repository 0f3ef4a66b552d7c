package thumbor

import (
	"testing"

	"github.com/fpang/image-handler/internal/apierror"
)

func TestParseCustomPath(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		pattern      string
		substitution string
		want         string
	}{
		{
			name:         "global replace",
			path:         "/filters-rotate(90)/filters-grayscale()/thumbor-image.jpg",
			pattern:      "/(filters-)/gm",
			substitution: "filters:",
			want:         "/filters:rotate(90)/filters:grayscale()/thumbor-image.jpg",
		},
		{
			name:         "first match only without g",
			path:         "/filters-rotate(90)/filters-grayscale()/thumbor-image.jpg",
			pattern:      "/(filters-)/",
			substitution: "filters:",
			want:         "/filters:rotate(90)/filters-grayscale()/thumbor-image.jpg",
		},
		{
			name:         "numbered groups",
			path:         "/thumbs/300/photo.jpg",
			pattern:      `/^\/thumbs\/(\d+)\/(.+)$/`,
			substitution: "/fit-in/$1x$1/$2",
			want:         "/fit-in/300x300/photo.jpg",
		},
		{
			name:         "case insensitive",
			path:         "/FILTERS-grayscale()/image.jpg",
			pattern:      "/filters-/gi",
			substitution: "filters:",
			want:         "/filters:grayscale()/image.jpg",
		},
		{
			name:         "whole match and literal dollar",
			path:         "/a/image.jpg",
			pattern:      "/image/",
			substitution: "$&-$$",
			want:         "/a/image-$.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCustomPath(tt.path, tt.pattern, tt.substitution)
			if err != nil {
				t.Fatalf("ParseCustomPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseCustomPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCustomPath_Errors(t *testing.T) {
	tests := []struct {
		name                        string
		path, pattern, substitution string
		wantCode                    string
	}{
		{"no path", "", "/(filters-)/gm", "filters:", apierror.CodePathUndefined},
		{"no pattern", "/x.jpg", "", "filters:", apierror.CodeRewriteMatchPatternUndefined},
		{"no substitution", "/x.jpg", "/(filters-)/gm", "", apierror.CodeRewriteSubstitutionUndefined},
		{"bad expression", "/x.jpg", "/(filters-/g", "filters:", apierror.CodeRewriteMatchPatternInvalid},
		{"bad flag", "/x.jpg", "/filters-/q", "filters:", apierror.CodeRewriteMatchPatternInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCustomPath(tt.path, tt.pattern, tt.substitution)
			if !apierror.HasCode(err, tt.wantCode) {
				t.Errorf("ParseCustomPath() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
