// Package events defines the closed set of telemetry event types, the
// schema registry used to validate and normalize incoming events, and
// typed views of a few payload variants. Payloads are heterogeneous JSON
// on the wire and in the database; the aggregators read type-specific
// fields from the decoded map, and the dashboard queries read them with
// SQL JSON operators.
package events

import "time"

// Type is the closed enum of accepted event_type values.
type Type string

const (
	TypeAppInstalled          Type = "app_installed"
	TypeAppLaunched           Type = "app_launched"
	TypeUserInstalled         Type = "user_installed"
	TypeUserRegistered        Type = "user_registered"
	TypeSettingsChanged       Type = "settings_changed"
	TypeGameStarted           Type = "game_started"
	TypeGameEnded             Type = "game_ended"
	TypeGamePaused            Type = "game_paused"
	TypeGameResumed           Type = "game_resumed"
	TypeContinueUsed          Type = "continue_used"
	TypeLevelStarted          Type = "level_started"
	TypeLevelCompleted        Type = "level_completed"
	TypeLevelFailed           Type = "level_failed"
	TypeCurrencyEarned        Type = "currency_earned"
	TypeCurrencySpent         Type = "currency_spent"
	TypePurchaseInitiated     Type = "purchase_initiated"
	TypePurchaseCompleted     Type = "purchase_completed"
	TypeSkinUnlocked          Type = "skin_unlocked"
	TypeSkinEquipped          Type = "skin_equipped"
	TypeAchievementUnlocked   Type = "achievement_unlocked"
	TypeMissionCompleted      Type = "mission_completed"
	TypeDailyStreakClaimed    Type = "daily_streak_claimed"
	TypeLevelUnlocked         Type = "level_unlocked"
	TypeLeaderboardViewed     Type = "leaderboard_viewed"
	TypeTournamentEntered     Type = "tournament_entered"
	TypeAdWatched             Type = "ad_watched"
	TypeShareClicked          Type = "share_clicked"
	TypeNotificationReceived  Type = "notification_received"
)

// AllTypes enumerates the full closed set used by the validator's
// registry. The persistence-layer check constraint (I6) lists the same
// values by hand in the events migration.
var AllTypes = []Type{
	TypeAppInstalled, TypeAppLaunched, TypeUserInstalled, TypeUserRegistered,
	TypeSettingsChanged, TypeGameStarted, TypeGameEnded, TypeGamePaused,
	TypeGameResumed, TypeContinueUsed, TypeLevelStarted, TypeLevelCompleted,
	TypeLevelFailed, TypeCurrencyEarned, TypeCurrencySpent, TypePurchaseInitiated,
	TypePurchaseCompleted, TypeSkinUnlocked, TypeSkinEquipped, TypeAchievementUnlocked,
	TypeMissionCompleted, TypeDailyStreakClaimed, TypeLevelUnlocked, TypeLeaderboardViewed,
	TypeTournamentEntered, TypeAdWatched, TypeShareClicked, TypeNotificationReceived,
}

// Platform is the closed enum for the base "platform" field.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Priority classes used to route jobs in the job queue (spec §4.2).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// PriorityFor implements the routing table from spec §4.2: game_ended is
// highest priority, level_completed/currency_* are medium, everything else
// (lifecycle events) is low.
func PriorityFor(t Type) Priority {
	switch t {
	case TypeGameEnded:
		return PriorityHigh
	case TypeLevelCompleted, TypeCurrencyEarned, TypeCurrencySpent:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Normalized is the event after validation: base fields extracted and
// normalized (timestamp in UTC), plus the raw, schema-validated payload
// for type-specific fields.
type Normalized struct {
	EventType  Type
	UserID     string
	Timestamp  time.Time
	AppVersion string
	Platform   Platform
	SessionID  string
	Payload    map[string]interface{}
}

// GameEndedPayload is the typed view of a game_ended event's payload.
// The aggregators do not decode into it; they read the payload map.
type GameEndedPayload struct {
	Score           int64  `json:"score"`
	DurationSeconds int64  `json:"duration_seconds"`
	CauseOfDeath    string `json:"cause_of_death"`
	Nickname        string `json:"nickname,omitempty"`
}

// PurchaseCompletedPayload is the typed view of a purchase_completed
// payload. The IAP funnel dashboard query reads these fields in SQL.
type PurchaseCompletedPayload struct {
	ProductID string  `json:"product_id"`
	PriceUSD  float64 `json:"price_usd"`
	Currency  string  `json:"currency"`
}

// CurrencyEventPayload is the typed view shared by currency_earned and
// currency_spent. The currency-sinks dashboard query reads these fields
// in SQL.
type CurrencyEventPayload struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
	Source   string `json:"source"`
}
