package alert_test

import (
	"strings"
	"testing"

	"github.com/modryx/warden/internal/alert"
	"github.com/stretchr/testify/assert"
)

func TestFormatAlertMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  alert.Request
		want string
	}{
		{
			name: "full format fits",
			req: alert.Request{
				Category:        alert.CategoryWatchlist,
				SubjectUsername: "SomeUser",
				Tags:            []string{"scammer"},
			},
			want: "WATCHLIST: SomeUser [scammer]",
		},
		{
			name: "drops prefix when too long",
			req: alert.Request{
				Category:        alert.CategoryWatchlist,
				SubjectUsername: strings.Repeat("a", 45),
				Tags:            []string{"repeat-offender"},
			},
			want: strings.Repeat("a", 45) + " [repeat-offender]",
		},
		{
			name: "drops tag when still too long",
			req: alert.Request{
				Category:        alert.CategoryWatchlist,
				SubjectUsername: strings.Repeat("b", 60),
				Tags:            []string{"spam"},
			},
			want: strings.Repeat("b", 60),
		},
		{
			name: "truncates overlong name",
			req: alert.Request{
				Category:        alert.CategoryWatchlist,
				SubjectUsername: strings.Repeat("c", 80),
			},
			want: strings.Repeat("c", 64),
		},
		{
			name: "no tags uses prefixed name",
			req: alert.Request{
				Category:        alert.CategoryJoinRequest,
				SubjectUsername: "Newcomer",
			},
			want: "JOIN_REQUEST: Newcomer",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := alert.FormatAlertMessage(&tt.req)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), alert.MaxMessageLength)
		})
	}
}

func TestFormatAlertMessageLengthProperty(t *testing.T) {
	t.Parallel()

	// Any combination of username and tags stays within the cap
	usernames := []string{
		"",
		"short",
		strings.Repeat("x", 63),
		strings.Repeat("x", 64),
		strings.Repeat("x", 200),
		strings.Repeat("日", 100),
	}
	tagSets := [][]string{
		nil,
		{"a"},
		{strings.Repeat("t", 100)},
		{"one", "two"},
	}

	for _, username := range usernames {
		for _, tags := range tagSets {
			got := alert.FormatAlertMessage(&alert.Request{
				Category:        alert.CategoryModeration,
				SubjectUsername: username,
				Tags:            tags,
			})
			assert.LessOrEqual(t, len([]rune(got)), alert.MaxMessageLength)
		}
	}
}
