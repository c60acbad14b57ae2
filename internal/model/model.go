package model

import "time"

// FirstSeason is the earliest season the pipeline accepts.
const FirstSeason = 2016

// SeasonWeek is the Week value of the per-player season aggregate GameStat row.
// It is stored as NULL.
const SeasonWeek = 0

// RegularSeason is the season_type value of regular-season plays.
const RegularSeason = "REG"

// CurrentSeason returns the season in progress at t. A season is named after
// the year it kicks off in, so months before September belong to the prior one.
func CurrentSeason(t time.Time) int {
	if t.Month() < time.September {
		return t.Year() - 1
	}
	return t.Year()
}

// ---- Raw play-by-play ----

// Play is one regular-season play. Nullable numerics are nil when the
// provider left the value empty; booleans default to false.
type Play struct {
	GameID   string
	PlayID   string
	Season   int
	Week     int
	GameDate string // YYYY-MM-DD
	PlayType string
	PosTeam  string
	DefTeam  string

	PasserID     string // "" when no passer
	PasserName   string
	RusherID     string
	RusherName   string
	ReceiverID   string
	ReceiverName string

	PassAttempt        bool
	CompletePass       bool
	Sack               bool
	Interception       bool
	RushAttempt        bool
	PassTouchdown      bool
	RushTouchdown      bool
	ReceivingTouchdown bool

	PassingYards    *int
	RushingYards    *int
	ReceivingYards  *int
	AirYards        *int
	YardsAfterCatch *int

	Down        *int
	YardsToGo   *int
	YardLine100 *int
	Quarter     *int

	EPA     *float64
	Success bool
	CPOE    *float64
}

// Key returns the natural key used for duplicate detection.
func (p Play) Key() PlayKey {
	return PlayKey{GameID: p.GameID, PlayID: p.PlayID}
}

// Role qualification filters. Every aggregation stage counts plays through
// these, so medians, boxscores and EPA agree on what an attempt is.

// QualifiesPassing reports whether p is a passing attempt by its passer:
// sacks and spikes are excluded.
func (p Play) QualifiesPassing() bool {
	return p.PasserID != "" && p.PassAttempt && !p.Sack && p.PlayType != "qb_spike"
}

// QualifiesRushing reports whether p is a rushing attempt by its rusher.
func (p Play) QualifiesRushing() bool {
	return p.RusherID != "" && p.RushAttempt
}

// QualifiesReceiving reports whether p targeted its receiver.
func (p Play) QualifiesReceiving() bool {
	return p.ReceiverID != "" && p.PassAttempt
}

// PlayKey is the (game_id, play_id) composite key, compared as exact strings.
type PlayKey struct {
	GameID string
	PlayID string
}

// RosterEntry is one row of the provider's seasonal roster.
type RosterEntry struct {
	ExternalID string // gsis id, the same id space as Play participant ids
	Name       string
	Position   string
	Team       string
}

// NGSPassing is one weekly next-gen-stats passing row. Week 0 is the
// season aggregate published alongside the weekly rows.
type NGSPassing struct {
	ExternalID string
	Season     int
	Week       int
	CPOE       float64
}

// ---- Canonical entities ----

// Player is the canonical registry entry for an athlete.
type Player struct {
	ID         int64
	ExternalID string
	Name       string
	Position   string
	Team       string
}

// PlayerSeasonStats holds per-attempt yardage medians and means for one
// player-season. Nil means the player had no qualifying plays in that role.
type PlayerSeasonStats struct {
	PlayerID int64
	Season   int

	MedianYardsPerPassAttempt     *float64
	AverageYardsPerPassAttempt    *float64
	MedianYardsPerRushingAttempt  *float64
	AverageYardsPerRushingAttempt *float64
	MedianYardsPerReception       *float64
	AverageYardsPerReception      *float64
}

// Boxscore is the counting-stat block of a GameStat row.
type Boxscore struct {
	PassingYds           int
	PassingTDs           int
	PassingInterceptions int
	PassingAttempts      int
	PassingCompletions   int
	PassingSacks         int

	RushingYds      int
	RushingAttempts int
	RushingTDs      int

	ReceivingYds int
	ReceivingTDs int
	Targets      int
	Receptions   int
}

// HasYards reports whether any of the three yardage totals is nonzero.
func (b Boxscore) HasYards() bool {
	return b.PassingYds != 0 || b.RushingYds != 0 || b.ReceivingYds != 0
}

// Add accumulates o into b.
func (b *Boxscore) Add(o Boxscore) {
	b.PassingYds += o.PassingYds
	b.PassingTDs += o.PassingTDs
	b.PassingInterceptions += o.PassingInterceptions
	b.PassingAttempts += o.PassingAttempts
	b.PassingCompletions += o.PassingCompletions
	b.PassingSacks += o.PassingSacks
	b.RushingYds += o.RushingYds
	b.RushingAttempts += o.RushingAttempts
	b.RushingTDs += o.RushingTDs
	b.ReceivingYds += o.ReceivingYds
	b.ReceivingTDs += o.ReceivingTDs
	b.Targets += o.Targets
	b.Receptions += o.Receptions
}

// EPAMetrics is the efficiency block shared by GameStat and AdvancedMetrics.
type EPAMetrics struct {
	PassingEPA         *float64
	PassingEPAPerPlay  *float64
	PassingSuccessRate *float64

	RushingEPA         *float64
	RushingEPAPerPlay  *float64
	RushingSuccessRate *float64

	ReceivingEPA         *float64
	ReceivingEPAPerPlay  *float64
	ReceivingSuccessRate *float64

	TotalEPA    *float64
	EPAPerPlay  *float64
	SuccessRate *float64
}

// GameStat is a per-player-per-week row, or the season row when Week == SeasonWeek.
type GameStat struct {
	PlayerID int64
	Season   int
	Week     int
	Games    int

	Boxscore
	CPOE *float64
	EPAMetrics
}

// IsSeasonRow reports whether g is the season aggregate row.
func (g GameStat) IsSeasonRow() bool { return g.Week == SeasonWeek }

// AdvancedMetrics is the per-player-per-season efficiency row.
type AdvancedMetrics struct {
	PlayerID int64
	Season   int
	EPAMetrics
	CPOE *float64
}

// Turnovers is the sack and interception pair written onto GameStat rows.
type Turnovers struct {
	Sacks         int
	Interceptions int
}

// PlayerWeek identifies one GameStat row.
type PlayerWeek struct {
	PlayerID int64
	Week     int
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
