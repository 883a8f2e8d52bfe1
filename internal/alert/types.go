package alert

// Severity orders alerts by urgency. Danger alerts bypass throttling.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Category identifies what triggered an alert.
type Category string

const (
	CategoryWatchlist   Category = "watchlist"
	CategoryJoinRequest Category = "join_request"
	CategoryModeration  Category = "moderation"
)

// Request is one alert-worthy condition handed to the dispatcher. It is
// transient; the dispatcher consumes and discards it.
type Request struct {
	Category        Category
	Severity        Severity
	SubjectUsername string
	SubjectUserID   string
	Tags            []string
	Thumbnail       []byte
}
