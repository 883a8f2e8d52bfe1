package rules_test

import (
	"testing"

	"github.com/modryx/warden/internal/rules"
	"github.com/stretchr/testify/assert"
)

func TestTrustRankFromTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tags []string
		want rules.TrustRank
	}{
		{
			name: "no recognized tags is visitor",
			tags: []string{"language_eng", "show_social_rank"},
			want: rules.TrustVisitor,
		},
		{
			name: "basic tag",
			tags: []string{"system_trust_basic"},
			want: rules.TrustNew,
		},
		{
			name: "highest tag wins",
			tags: []string{"system_trust_basic", "system_trust_trusted", "system_trust_known"},
			want: rules.TrustTrusted,
		},
		{
			name: "legend tag",
			tags: []string{"system_trust_legend"},
			want: rules.TrustLegendary,
		},
		{
			name: "empty tags",
			tags: nil,
			want: rules.TrustVisitor,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rules.TrustRankFromTags(tt.tags))
		})
	}
}

func TestTrustRankString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Visitor", rules.TrustVisitor.String())
	assert.Equal(t, "New User", rules.TrustNew.String())
	assert.Equal(t, "Legendary User", rules.TrustLegendary.String())
}
