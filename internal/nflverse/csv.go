package nflverse

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pable/go-nfl-metrics/internal/model"
)

// header maps lower-cased column names to their index.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	rec, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(rec))
	for i, name := range rec {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h, nil
}

// idxOf returns the index of the first column present among names, or -1.
func (h header) idxOf(names ...string) int {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i
		}
	}
	return -1
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

// get returns the trimmed field at i, mapping the R "NA" marker to "".
func get(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	s := strings.TrimSpace(rec[i])
	if s == "NA" {
		return ""
	}
	return s
}

func parseFloat(rec []string, i int) *float64 {
	s := get(rec, i)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}

// parseInt accepts integral and float-formatted values ("12", "12.0").
func parseInt(rec []string, i int) *int {
	return intFromFloat(parseFloat(rec, i))
}

// parseBool treats 1/TRUE/T as true; everything else, including blanks, is false.
func parseBool(rec []string, i int) bool {
	switch strings.ToUpper(get(rec, i)) {
	case "1", "1.0", "TRUE", "T":
		return true
	}
	return false
}

func intFromFloat(f *float64) *int {
	if f == nil || math.IsNaN(*f) {
		return nil
	}
	v := int(math.Round(*f))
	return &v
}

// normalizeID renders numeric identifiers without a trailing ".0" so the
// parquet and CSV encodings of play_id produce the same key.
func normalizeID(s string) string {
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !strings.ContainsAny(s, "_-") {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

type playColumns struct {
	gameID, playID, seasonType, season, week, gameDate, playType, posTeam, defTeam int

	passerID, passerName, rusherID, rusherName, receiverID, receiverName int

	passAttempt, completePass, sack, interception, rushAttempt int
	passTD, rushTD, receivingTD                                int

	passingYards, rushingYards, receivingYards, airYards, yac int
	down, ydsToGo, yardLine100, qtr                           int

	epa, success, cpoe int
}

func playColumnsOf(h header) (playColumns, error) {
	c := playColumns{
		gameID:     h.idxOf("game_id"),
		playID:     h.idxOf("play_id"),
		seasonType: h.idxOf("season_type"),
		season:     h.idxOf("season"),
		week:       h.idxOf("week"),
		gameDate:   h.idxOf("game_date"),
		playType:   h.idxOf("play_type"),
		posTeam:    h.idxOf("posteam"),
		defTeam:    h.idxOf("defteam"),

		passerID:     h.idxOf("passer_player_id", "passer_id"),
		passerName:   h.idxOf("passer_player_name", "passer"),
		rusherID:     h.idxOf("rusher_player_id", "rusher_id"),
		rusherName:   h.idxOf("rusher_player_name", "rusher"),
		receiverID:   h.idxOf("receiver_player_id", "receiver_id"),
		receiverName: h.idxOf("receiver_player_name", "receiver"),

		passAttempt:  h.idxOf("pass_attempt"),
		completePass: h.idxOf("complete_pass"),
		sack:         h.idxOf("sack"),
		interception: h.idxOf("interception"),
		rushAttempt:  h.idxOf("rush_attempt"),
		passTD:       h.idxOf("pass_touchdown"),
		rushTD:       h.idxOf("rush_touchdown"),
		receivingTD:  h.idxOf("receiving_touchdown"),

		passingYards:   h.idxOf("passing_yards"),
		rushingYards:   h.idxOf("rushing_yards"),
		receivingYards: h.idxOf("receiving_yards"),
		airYards:       h.idxOf("air_yards"),
		yac:            h.idxOf("yards_after_catch"),
		down:           h.idxOf("down"),
		ydsToGo:        h.idxOf("ydstogo"),
		yardLine100:    h.idxOf("yardline_100"),
		qtr:            h.idxOf("qtr"),

		epa:     h.idxOf("epa"),
		success: h.idxOf("success"),
		cpoe:    h.idxOf("cpoe"),
	}
	if c.gameID < 0 || c.playID < 0 || c.season < 0 || c.week < 0 {
		return c, fmt.Errorf("required columns missing (need game_id, play_id, season, week)")
	}
	return c, nil
}

// DecodePlaysCSV reads a play-by-play CSV and returns the regular-season
// plays of season. Rows without a game or play id are dropped.
func DecodePlaysCSV(r io.Reader, season int) ([]model.Play, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	c, err := playColumnsOf(h)
	if err != nil {
		return nil, err
	}

	var out []model.Play
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if c.seasonType >= 0 && get(rec, c.seasonType) != model.RegularSeason {
			continue
		}
		s := parseInt(rec, c.season)
		w := parseInt(rec, c.week)
		if s == nil || *s != season || w == nil {
			continue
		}
		p := model.Play{
			GameID:   get(rec, c.gameID),
			PlayID:   normalizeID(get(rec, c.playID)),
			Season:   *s,
			Week:     *w,
			GameDate: get(rec, c.gameDate),
			PlayType: get(rec, c.playType),
			PosTeam:  get(rec, c.posTeam),
			DefTeam:  get(rec, c.defTeam),

			PasserID:     get(rec, c.passerID),
			PasserName:   get(rec, c.passerName),
			RusherID:     get(rec, c.rusherID),
			RusherName:   get(rec, c.rusherName),
			ReceiverID:   get(rec, c.receiverID),
			ReceiverName: get(rec, c.receiverName),

			PassAttempt:        parseBool(rec, c.passAttempt),
			CompletePass:       parseBool(rec, c.completePass),
			Sack:               parseBool(rec, c.sack),
			Interception:       parseBool(rec, c.interception),
			RushAttempt:        parseBool(rec, c.rushAttempt),
			PassTouchdown:      parseBool(rec, c.passTD),
			RushTouchdown:      parseBool(rec, c.rushTD),
			ReceivingTouchdown: parseBool(rec, c.receivingTD),

			PassingYards:    parseInt(rec, c.passingYards),
			RushingYards:    parseInt(rec, c.rushingYards),
			ReceivingYards:  parseInt(rec, c.receivingYards),
			AirYards:        parseInt(rec, c.airYards),
			YardsAfterCatch: parseInt(rec, c.yac),
			Down:            parseInt(rec, c.down),
			YardsToGo:       parseInt(rec, c.ydsToGo),
			YardLine100:     parseInt(rec, c.yardLine100),
			Quarter:         parseInt(rec, c.qtr),

			EPA:     parseFloat(rec, c.epa),
			Success: parseBool(rec, c.success),
			CPOE:    parseFloat(rec, c.cpoe),
		}
		if p.GameID == "" || p.PlayID == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeRoster reads a seasonal roster CSV keyed by gsis id. Rows without
// an id are dropped.
func DecodeRoster(r io.Reader) ([]model.RosterEntry, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	iID := h.idxOf("gsis_id", "player_id")
	iName := h.idxOf("full_name", "player_name")
	iPos := h.idxOf("position")
	iTeam := h.idxOf("team")
	if iID < 0 {
		return nil, fmt.Errorf("required column missing (need gsis_id)")
	}

	var out []model.RosterEntry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		id := get(rec, iID)
		if id == "" {
			continue
		}
		out = append(out, model.RosterEntry{
			ExternalID: id,
			Name:       get(rec, iName),
			Position:   strings.ToUpper(get(rec, iPos)),
			Team:       strings.ToUpper(get(rec, iTeam)),
		})
	}
	return out, nil
}

// DecodeNGSPassing reads the next-gen-stats passing CSV and returns the
// regular-season rows of season with a player id and a CPOE value.
func DecodeNGSPassing(r io.Reader, season int) ([]model.NGSPassing, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	iSeason := h.idxOf("season")
	iType := h.idxOf("season_type")
	iWeek := h.idxOf("week")
	iID := h.idxOf("player_gsis_id")
	iCPOE := h.idxOf("completion_percentage_above_expectation")
	if iSeason < 0 || iWeek < 0 || iID < 0 || iCPOE < 0 {
		return nil, fmt.Errorf("required columns missing (need season, week, player_gsis_id, completion_percentage_above_expectation)")
	}

	var out []model.NGSPassing
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if iType >= 0 && get(rec, iType) != model.RegularSeason {
			continue
		}
		s := parseInt(rec, iSeason)
		w := parseInt(rec, iWeek)
		cpoe := parseFloat(rec, iCPOE)
		id := get(rec, iID)
		if s == nil || *s != season || w == nil || cpoe == nil || id == "" {
			continue
		}
		out = append(out, model.NGSPassing{ExternalID: id, Season: *s, Week: *w, CPOE: *cpoe})
	}
	return out, nil
}
