package alert

import (
	"fmt"
	"strings"

	"github.com/modryx/warden/pkg/utils"
)

// MaxMessageLength is the hard cap the platform enforces on slot text.
const MaxMessageLength = 64

// FormatAlertMessage builds the short fallback-channel text for an alert.
// Three formats are tried in order of decreasing detail and the longest
// one that fits the cap is used; if even the bare name overflows, the
// name itself is truncated to fit.
func FormatAlertMessage(req *Request) string {
	name := req.SubjectUsername

	var tag string
	if len(req.Tags) > 0 {
		tag = req.Tags[0]
	}

	candidates := make([]string, 0, 3)

	if tag != "" {
		candidates = append(candidates,
			fmt.Sprintf("%s: %s [%s]", strings.ToUpper(string(req.Category)), name, tag),
			fmt.Sprintf("%s [%s]", name, tag),
		)
	} else {
		candidates = append(candidates,
			fmt.Sprintf("%s: %s", strings.ToUpper(string(req.Category)), name),
		)
	}

	candidates = append(candidates, name)

	for _, candidate := range candidates {
		if len([]rune(candidate)) <= MaxMessageLength {
			return candidate
		}
	}

	return utils.TruncateRunes(name, MaxMessageLength)
}
