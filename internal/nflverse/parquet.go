package nflverse

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// PlayRow is the subset of play-by-play parquet columns we read. nflverse
// stores most numerics (ids, flags, yardage) as doubles.
type PlayRow struct {
	GameID     *string  `parquet:"game_id,optional"`
	PlayID     *float64 `parquet:"play_id,optional"`
	SeasonType *string  `parquet:"season_type,optional"`
	Season     *float64 `parquet:"season,optional"`
	Week       *float64 `parquet:"week,optional"`
	GameDate   *string  `parquet:"game_date,optional"`
	PlayType   *string  `parquet:"play_type,optional"`
	PosTeam    *string  `parquet:"posteam,optional"`
	DefTeam    *string  `parquet:"defteam,optional"`

	PasserID     *string `parquet:"passer_player_id,optional"`
	PasserName   *string `parquet:"passer_player_name,optional"`
	RusherID     *string `parquet:"rusher_player_id,optional"`
	RusherName   *string `parquet:"rusher_player_name,optional"`
	ReceiverID   *string `parquet:"receiver_player_id,optional"`
	ReceiverName *string `parquet:"receiver_player_name,optional"`

	PassAttempt   *float64 `parquet:"pass_attempt,optional"`
	CompletePass  *float64 `parquet:"complete_pass,optional"`
	Sack          *float64 `parquet:"sack,optional"`
	Interception  *float64 `parquet:"interception,optional"`
	RushAttempt   *float64 `parquet:"rush_attempt,optional"`
	PassTouchdown *float64 `parquet:"pass_touchdown,optional"`
	RushTouchdown *float64 `parquet:"rush_touchdown,optional"`

	PassingYards    *float64 `parquet:"passing_yards,optional"`
	RushingYards    *float64 `parquet:"rushing_yards,optional"`
	ReceivingYards  *float64 `parquet:"receiving_yards,optional"`
	AirYards        *float64 `parquet:"air_yards,optional"`
	YardsAfterCatch *float64 `parquet:"yards_after_catch,optional"`
	Down            *float64 `parquet:"down,optional"`
	YardsToGo       *float64 `parquet:"ydstogo,optional"`
	YardLine100     *float64 `parquet:"yardline_100,optional"`
	Quarter         *float64 `parquet:"qtr,optional"`

	EPA     *float64 `parquet:"epa,optional"`
	Success *float64 `parquet:"success,optional"`
	CPOE    *float64 `parquet:"cpoe,optional"`
}

// DecodePlaysParquet reads a play-by-play parquet file and returns the
// regular-season plays of season.
func DecodePlaysParquet(b []byte, season int) ([]model.Play, error) {
	rows, err := parquet.Read[PlayRow](bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	out := make([]model.Play, 0, len(rows))
	for i := range rows {
		p, ok := rows[i].toPlay(season)
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// toPlay converts r, reporting false for rows outside the season's regular
// season or without a natural key.
func (r *PlayRow) toPlay(season int) (model.Play, bool) {
	if str(r.SeasonType) != model.RegularSeason {
		return model.Play{}, false
	}
	s, w := intFromFloat(r.Season), intFromFloat(r.Week)
	if s == nil || *s != season || w == nil || r.PlayID == nil || math.IsNaN(*r.PlayID) || str(r.GameID) == "" {
		return model.Play{}, false
	}
	return model.Play{
		GameID:   str(r.GameID),
		PlayID:   strconv.FormatFloat(*r.PlayID, 'f', -1, 64),
		Season:   *s,
		Week:     *w,
		GameDate: str(r.GameDate),
		PlayType: str(r.PlayType),
		PosTeam:  str(r.PosTeam),
		DefTeam:  str(r.DefTeam),

		PasserID:     str(r.PasserID),
		PasserName:   str(r.PasserName),
		RusherID:     str(r.RusherID),
		RusherName:   str(r.RusherName),
		ReceiverID:   str(r.ReceiverID),
		ReceiverName: str(r.ReceiverName),

		PassAttempt:   flag(r.PassAttempt),
		CompletePass:  flag(r.CompletePass),
		Sack:          flag(r.Sack),
		Interception:  flag(r.Interception),
		RushAttempt:   flag(r.RushAttempt),
		PassTouchdown: flag(r.PassTouchdown),
		RushTouchdown: flag(r.RushTouchdown),

		PassingYards:    intFromFloat(r.PassingYards),
		RushingYards:    intFromFloat(r.RushingYards),
		ReceivingYards:  intFromFloat(r.ReceivingYards),
		AirYards:        intFromFloat(r.AirYards),
		YardsAfterCatch: intFromFloat(r.YardsAfterCatch),
		Down:            intFromFloat(r.Down),
		YardsToGo:       intFromFloat(r.YardsToGo),
		YardLine100:     intFromFloat(r.YardLine100),
		Quarter:         intFromFloat(r.Quarter),

		EPA:     finite(r.EPA),
		Success: flag(r.Success),
		CPOE:    finite(r.CPOE),
	}, true
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func flag(f *float64) bool {
	return f != nil && *f == 1
}

func finite(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	return f
}
